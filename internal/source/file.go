package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// openFile opens a local source. On the default OS filesystem, relative paths
// are resolved against the working directory.
func (o *Opener) openFile(name string) (*Stream, error) {
	if name == "" {
		return nil, fmt.Errorf("source: empty path: %w", ErrNotFound)
	}
	if o.osRooted && !filepath.IsAbs(name) {
		abs, err := filepath.Abs(name)
		if err != nil {
			return nil, fmt.Errorf("source: resolve %s: %w", name, err)
		}
		name = abs
	}

	info, err := o.fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("source: stat %s: %w", name, translateFSError(err))
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}

	f, err := o.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", name, translateFSError(err))
	}

	return &Stream{
		Body: f,
		Size: info.Size(),
		Name: info.Name(),
	}, nil
}

func translateFSError(err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return errors.Join(ErrNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return errors.Join(ErrForbidden, err)
	default:
		return err
	}
}

// Package s3stream streams objects from a source into S3 without staging them
// on disk.
//
// The source is cut into fixed-size parts that are uploaded concurrently as
// one S3 multipart upload. Memory use is bounded by the part size times the
// number of upload workers, whatever the size of the source. A transfer either
// commits the whole object or aborts the multipart session so no orphaned
// parts are left behind.
//
// Example usage:
//
//	client, err := s3stream.New(
//	    s3stream.WithRegion("eu-central-1"),
//	    s3stream.WithConcurrency(8),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	result, err := client.Transfer(ctx, "https://example.com/image.iso", "my-bucket", "images/image.iso")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.ETag, result.Parts)
//
// Sources are http and https URLs, file URLs and local paths. Any io.Reader
// can be streamed with TransferReader.
package s3stream

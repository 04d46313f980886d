// Package download streams a node download body to disk with optional
// checksum validation and progress reporting.
//
// [Handle] writes the body to a temporary file alongside the destination
// path, then atomically renames it on success:
//
//	err := download.Handle(ctx, body, length, destPath, logger,
//		download.WithChecksum(sha256.New(), expectedHex),
//	)
//
// Most callers reach this through connector.FileResponse.SaveTo, which
// forwards its options here after the response headers were validated.
package download

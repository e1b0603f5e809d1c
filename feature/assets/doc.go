// Package assets serves files from object storage or a local directory through
// a generation-based resource cache.
//
// Every requested key becomes a resource of one core/resource.Manager backed by
// an Asset loader. The background load reads the bytes; the post-sync phase,
// driven by the FrameLoop, hashes them into an ETag and publishes them.
//
// # Components
//
//   - Source: BucketSource (MinIO/S3) or DirSource (local files).
//   - Service: get-or-create with singleflight, reads, pins, reloads, eviction.
//   - Handler: /assets/* and /cache/* routes.
//   - FrameLoop: owner goroutine for post-sync work.
//   - BucketWatcher, DirWatcher: reload cached assets when the source changes.
package assets

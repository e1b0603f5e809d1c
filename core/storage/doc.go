// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the small Client interface the asset cache
// needs: reading and stat-ing objects, listing a prefix and listening for bucket
// notifications. Both AWS S3 and self-hosted MinIO are supported.
//
// The interface exists so tests can use the testify mock in core/storage/mocks.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	info, err := client.StatObject(ctx, "assets", "textures/grass.png", minio.StatObjectOptions{})
package storage

package catalog

import (
	"context"
	"fmt"

	"asset-streamer/core/storage"
	"asset-streamer/feature/assets"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const syncBatchSize = 200

// SyncResult summarizes a catalog sync.
type SyncResult struct {
	Listed  int `json:"listed"`
	Skipped int `json:"skipped"`
	Written int `json:"written"`
}

// Syncer fills the catalog from a bucket listing.
type Syncer struct {
	repo   *Repository
	client storage.Client
	bucket string
	src    *assets.BucketSource
	logger *zap.Logger
}

// NewSyncer creates a syncer for the objects under prefix in bucket.
func NewSyncer(repo *Repository, client storage.Client, bucket, prefix string, logger *zap.Logger) *Syncer {
	return &Syncer{
		repo:   repo,
		client: client,
		bucket: bucket,
		src:    assets.NewBucketSource(client, bucket, prefix),
		logger: logger,
	}
}

// Sync lists the bucket and upserts one entry per object. Listing and
// writing run concurrently; the first error stops both.
func (s *Syncer) Sync(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	g, ctx := errgroup.WithContext(ctx)
	batches := make(chan []Entry)

	g.Go(func() error {
		defer close(batches)
		prefix := s.src.Object("")
		batch := make([]Entry, 0, syncBatchSize)
		for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if obj.Err != nil {
				return fmt.Errorf("failed to list bucket %s: %w", s.bucket, obj.Err)
			}
			res.Listed++
			key, ok := s.src.Key(obj.Key)
			if !ok {
				res.Skipped++
				continue
			}
			if _, err := assets.CleanKey(key); err != nil {
				res.Skipped++
				continue
			}
			batch = append(batch, Entry{
				Key:         key,
				Object:      obj.Key,
				Size:        obj.Size,
				Independent: true,
				PostSync:    true,
				UpdatedAt:   obj.LastModified,
			})
			if len(batch) == syncBatchSize {
				select {
				case batches <- batch:
				case <-ctx.Done():
					return ctx.Err()
				}
				batch = make([]Entry, 0, syncBatchSize)
			}
		}
		if len(batch) > 0 {
			select {
			case batches <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		for batch := range batches {
			if err := s.repo.Upsert(ctx, batch...); err != nil {
				return err
			}
			res.Written += len(batch)
		}
		return nil
	})

	err := g.Wait()
	s.logger.Info("Catalog sync finished",
		zap.String("bucket", s.bucket),
		zap.Int("listed", res.Listed),
		zap.Int("skipped", res.Skipped),
		zap.Int("written", res.Written),
		zap.Error(err))
	return res, err
}

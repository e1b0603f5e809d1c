package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result is the reconciliation outcome of one key that needs attention.
type Result struct {
	Key       string `json:"key"`
	InCatalog bool   `json:"in_catalog"`
	InStorage bool   `json:"in_storage"`
	// Mismatch describes differing fields, e.g. "size: catalog=10 storage=12".
	Mismatch []string `json:"mismatch"`
}

// Report summarizes a reconciliation of the catalog against the bucket.
type Report struct {
	Total      int      `json:"total"`
	Missing    int      `json:"missing"`
	Stale      int      `json:"stale"`
	Mismatched int      `json:"mismatched"`
	Results    []Result `json:"results"`
}

// Clean reports whether catalog and bucket agree.
func (r *Report) Clean() bool { return len(r.Results) == 0 }

// Reconcile compares every catalog entry with the bucket listing. Keys that
// exist on one side only, or whose object or size differ, are reported;
// matching keys are only counted. Both indices are built concurrently.
func (s *Syncer) Reconcile(ctx context.Context) (*Report, error) {
	var (
		catalogIndex map[string]Entry
		storageIndex map[string]minio.ObjectInfo
	)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		entries, err := s.repo.List(ctx, 0, 0)
		if err != nil {
			return err
		}
		catalogIndex = make(map[string]Entry, len(entries))
		for _, e := range entries {
			catalogIndex[e.Key] = e
		}
		return nil
	})

	g.Go(func() error {
		storageIndex = make(map[string]minio.ObjectInfo)
		for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.src.Object(""), Recursive: true}) {
			if obj.Err != nil {
				return fmt.Errorf("failed to list bucket %s: %w", s.bucket, obj.Err)
			}
			if key, ok := s.src.Key(obj.Key); ok {
				storageIndex[key] = obj
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Results: []Result{}}
	for key := range union(catalogIndex, storageIndex) {
		report.Total++
		e, inCatalog := catalogIndex[key]
		obj, inStorage := storageIndex[key]
		res := Result{Key: key, InCatalog: inCatalog, InStorage: inStorage, Mismatch: []string{}}

		switch {
		case !inCatalog:
			report.Missing++
		case !inStorage:
			report.Stale++
		default:
			res.Mismatch = compare(e, obj)
			if len(res.Mismatch) == 0 {
				continue
			}
			report.Mismatched++
		}
		report.Results = append(report.Results, res)
	}

	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].Key < report.Results[j].Key
	})

	s.logger.Info("Catalog reconciled",
		zap.Int("total", report.Total),
		zap.Int("missing", report.Missing),
		zap.Int("stale", report.Stale),
		zap.Int("mismatched", report.Mismatched))
	return report, nil
}

func union(catalogIndex map[string]Entry, storageIndex map[string]minio.ObjectInfo) map[string]struct{} {
	keys := make(map[string]struct{}, len(catalogIndex)+len(storageIndex))
	for k := range catalogIndex {
		keys[k] = struct{}{}
	}
	for k := range storageIndex {
		keys[k] = struct{}{}
	}
	return keys
}

func compare(e Entry, obj minio.ObjectInfo) []string {
	var out []string
	if e.Object != obj.Key {
		out = append(out, fmt.Sprintf("object: catalog=%s storage=%s", e.Object, obj.Key))
	}
	if e.Size != obj.Size {
		out = append(out, fmt.Sprintf("size: catalog=%d storage=%d", e.Size, obj.Size))
	}
	return out
}

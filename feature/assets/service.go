package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"asset-streamer/core/resource"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrInUse is returned when evicting an asset that still has open handles.
var ErrInUse = errors.New("asset in use")

// Meta is what the catalog knows about an asset.
type Meta struct {
	Size        int64
	Pinned      bool
	Independent bool
	PostSync    bool
}

// Catalog looks up asset metadata. Lookup returns ErrNotFound for unknown keys.
type Catalog interface {
	Lookup(ctx context.Context, key string) (Meta, error)
}

// AssetHandle is a counted reference to a cached asset.
type AssetHandle = resource.Handle[*Asset]

// Service serves assets through a resource manager.
type Service struct {
	mgr      *resource.Manager
	src      Source
	catalog  Catalog
	logger   *zap.Logger
	postSync bool
	timeout  time.Duration

	group singleflight.Group
	// syncMu serializes every resource access under a sync manager, whose
	// resources are not locked.
	syncMu sync.Mutex
}

// NewService creates a service. catalog may be nil.
func NewService(mgr *resource.Manager, src Source, catalog Catalog, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		mgr:      mgr,
		src:      src,
		catalog:  catalog,
		logger:   logger,
		postSync: cfg.PostSync && mgr.UsesAsync(),
		timeout:  cfg.ReadTimeout,
	}
}

// Manager returns the underlying resource manager.
func (s *Service) Manager() *resource.Manager { return s.mgr }

// Source returns the asset source.
func (s *Service) Source() Source { return s.src }

// resource returns the resource for key, creating and registering it on the
// first request. Concurrent first requests share one creation.
func (s *Service) resource(ctx context.Context, key string) (resource.Resource, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	if r := s.mgr.Exists(key); r != nil {
		return r, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if r := s.mgr.Exists(key); r != nil {
			return r, nil
		}
		meta, err := s.lookup(ctx, key)
		if err != nil {
			return nil, err
		}

		opts := []resource.ResourceOption{resource.WithIndependent(meta.Independent)}
		if meta.Pinned {
			opts = append(opts, resource.WithPinned())
		}
		postSync := meta.PostSync && s.mgr.UsesAsync()
		if postSync {
			opts = append(opts, resource.WithPostSync())
		}

		asset := NewAsset(key, s.src, meta.Size, postSync, s.timeout)
		r, err := s.mgr.NewResource(key, asset, opts...)
		if errors.Is(err, resource.ErrDuplicateKey) {
			if existing := s.mgr.Exists(key); existing != nil {
				return existing, nil
			}
		}
		if r == nil {
			return nil, err
		}
		if err != nil {
			// Sync managers load on registration; a failed load should not
			// leave a dead entry behind.
			r.Release()
			return nil, err
		}
		s.logger.Debug("Asset registered", zap.String("key", key), zap.Int64("size", meta.Size))
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(resource.Resource), nil
}

func (s *Service) lookup(ctx context.Context, key string) (Meta, error) {
	if s.catalog != nil {
		meta, err := s.catalog.Lookup(ctx, key)
		if err == nil {
			return meta, nil
		}
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Catalog lookup failed", zap.String("key", key), zap.Error(err))
		}
	}
	size, err := s.src.Stat(ctx, key)
	if err != nil {
		return Meta{}, err
	}
	return Meta{Size: size, Independent: true, PostSync: s.postSync}, nil
}

// exclusive takes syncMu when the manager is sync and returns its unlock.
func (s *Service) exclusive() func() {
	if s.mgr.UsesAsync() {
		return func() {}
	}
	s.syncMu.Lock()
	return s.syncMu.Unlock
}

// Open returns a counted handle to key. The asset is not loaded yet; use
// GetSync on the handle to wait for it. Close the handle when done; under a
// sync manager the last Close releases an unpinned asset, and the caller must
// not use handles from several goroutines at once. Read has no such limit.
func (s *Service) Open(ctx context.Context, key string) (*AssetHandle, error) {
	defer s.exclusive()()
	return s.open(ctx, key)
}

func (s *Service) open(ctx context.Context, key string) (*AssetHandle, error) {
	r, err := s.resource(ctx, key)
	if err != nil {
		return nil, err
	}
	var flags []resource.Flag
	if !s.mgr.UsesAsync() && !r.IsUnloadable() {
		flags = append(flags, resource.NoRefCounting)
	}
	return resource.NewHandle[*Asset](r, flags...)
}

// Read loads key if needed and returns its content and ETag. Under an async
// manager a post-sync phase still pending for key is finished on the calling
// goroutine, so HTTP handlers may take on post-sync work.
func (s *Service) Read(ctx context.Context, key string) ([]byte, string, error) {
	defer s.exclusive()()
	h, err := s.open(ctx, key)
	if err != nil {
		return nil, "", err
	}
	defer h.Close()

	asset, err := h.GetSync(ctx)
	if err != nil {
		return nil, "", err
	}
	data, etag, ok := asset.Content()
	if !ok {
		return nil, "", fmt.Errorf("%q: %w", key, resource.ErrInvalidState)
	}
	return data, etag, nil
}

// Pin keeps key resident: it is loaded and never evicted until Unpin.
func (s *Service) Pin(ctx context.Context, key string) error {
	defer s.exclusive()()
	r, err := s.resource(ctx, key)
	if err != nil {
		return err
	}
	r.LockUnloadable()
	r.Use()
	return nil
}

// Unpin makes key evictable again.
func (s *Service) Unpin(key string) error {
	defer s.exclusive()()
	r, err := s.cached(key)
	if err != nil {
		return err
	}
	r.UnlockUnloadable()
	return nil
}

// Reload refreshes key from the source if it is cached and loaded. It
// reports whether a reload was requested.
func (s *Service) Reload(key string) (bool, error) {
	defer s.exclusive()()
	r, err := s.cached(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if r.State() != resource.Loaded {
		return false, nil
	}
	if err := r.Reload(); err != nil {
		return false, err
	}
	s.logger.Info("Asset reloaded", zap.String("key", r.Key()))
	return true, nil
}

// ReloadAll refreshes every loaded asset.
func (s *Service) ReloadAll() error {
	defer s.exclusive()()
	return s.mgr.ReloadAll()
}

// Collect runs an eviction sweep now.
func (s *Service) Collect(ctx context.Context) error {
	return s.mgr.RunMaintenance(ctx)
}

// Evict drops key from the cache. Assets with open handles are refused.
func (s *Service) Evict(key string) error {
	defer s.exclusive()()
	r, err := s.cached(key)
	if err != nil {
		return err
	}
	if r.RefCount() > 0 {
		return fmt.Errorf("%q has %d open handles: %w", r.Key(), r.RefCount(), ErrInUse)
	}
	if !s.mgr.UsesAsync() {
		if err := r.Unload(); err != nil {
			return err
		}
	}
	r.Release()
	if a, ok := r.Loader().(*Asset); ok {
		a.discard()
	}
	return nil
}

// Stats returns the cache statistics.
func (s *Service) Stats() resource.Stats {
	defer s.exclusive()()
	return s.mgr.Stats()
}

func (s *Service) cached(key string) (resource.Resource, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	r := s.mgr.Exists(key)
	if r == nil {
		return nil, fmt.Errorf("%q not cached: %w", key, ErrNotFound)
	}
	return r, nil
}

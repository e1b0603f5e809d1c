package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"asset-streamer/core/resource"
	"asset-streamer/core/storage"
)

// snapshot is the published, immutable content of a loaded asset.
type snapshot struct {
	data     []byte
	etag     string
	loadedAt time.Time
}

// Asset is the loader behind one cached key. The background load reads the
// bytes; with post-sync enabled the ETag is computed a quarter at a time in the
// post-sync steps and the content is published at 100%.
type Asset struct {
	key      string
	src      Source
	timeout  time.Duration
	postSync bool

	size atomic.Int64

	mu     sync.Mutex
	staged []byte
	hasher hash.Hash
	// discarded is set once the asset is evicted; loads still running on the
	// worker then finish without publishing.
	discarded bool

	published atomic.Pointer[snapshot]
}

var _ resource.PostSyncLoader = (*Asset)(nil)

// NewAsset creates the loader for key. size is the estimate used until the
// first load reports the real length.
func NewAsset(key string, src Source, size int64, postSync bool, timeout time.Duration) *Asset {
	a := &Asset{key: key, src: src, timeout: timeout, postSync: postSync}
	a.size.Store(size)
	return a
}

// Key returns the asset key.
func (a *Asset) Key() string { return a.key }

// Size returns the byte size of the asset.
func (a *Asset) Size() int64 { return a.size.Load() }

// Load reads the asset from its source.
func (a *Asset) Load() error {
	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	rc, err := a.src.Open(ctx, a.key)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		if storage.IsNotFound(err) {
			return fmt.Errorf("%q: %w", a.key, ErrNotFound)
		}
		return fmt.Errorf("read %q: %w", a.key, err)
	}
	a.size.Store(int64(len(data)))

	var etag string
	if !a.postSync {
		sum := sha256.Sum256(data)
		etag = hex.EncodeToString(sum[:])
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.discarded {
		return nil
	}
	if !a.postSync {
		a.publishLocked(data, etag)
		return nil
	}
	a.staged = data
	a.hasher = nil
	return nil
}

// LoadPostSync hashes the staged bytes in quarters and publishes them at 100%.
func (a *Asset) LoadPostSync(percentage int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.discarded {
		return nil
	}
	if a.staged == nil {
		return fmt.Errorf("%q: nothing staged at %d%%", a.key, percentage)
	}
	if percentage == 0 || a.hasher == nil {
		a.hasher = sha256.New()
	}
	n := len(a.staged)
	lo, hi := n*percentage/100, n*(percentage+25)/100
	if hi > n {
		hi = n
	}
	if lo < hi {
		a.hasher.Write(a.staged[lo:hi])
	}
	if percentage < 100 {
		return nil
	}

	etag := hex.EncodeToString(a.hasher.Sum(nil))
	data := a.staged
	a.staged, a.hasher = nil, nil
	a.publishLocked(data, etag)
	return nil
}

// Unload drops the content. With post-sync enabled the published snapshot is
// retracted by the post-sync steps instead.
func (a *Asset) Unload() error {
	a.mu.Lock()
	a.staged, a.hasher = nil, nil
	a.mu.Unlock()
	if !a.postSync {
		a.published.Store(nil)
	}
	return nil
}

// UnloadPostSync retracts the snapshot at 0% so readers stop seeing it.
func (a *Asset) UnloadPostSync(percentage int) error {
	if percentage == 0 {
		a.published.Store(nil)
	}
	return nil
}

func (a *Asset) publishLocked(data []byte, etag string) {
	a.published.Store(&snapshot{data: data, etag: etag, loadedAt: time.Now()})
}

// discard drops everything for good, for assets evicted outside the manager.
func (a *Asset) discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discarded = true
	a.staged, a.hasher = nil, nil
	a.published.Store(nil)
}

// Content returns the published bytes and their ETag. ok is false until a
// load has completed.
func (a *Asset) Content() (data []byte, etag string, ok bool) {
	s := a.published.Load()
	if s == nil {
		return nil, "", false
	}
	return s.data, s.etag, true
}

// LoadedAt returns when the current content was published.
func (a *Asset) LoadedAt() (time.Time, bool) {
	s := a.published.Load()
	if s == nil {
		return time.Time{}, false
	}
	return s.loadedAt, true
}

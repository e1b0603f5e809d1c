package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"asset-streamer/core/storage"

	"github.com/fsnotify/fsnotify"
	"github.com/minio/minio-go/v7/pkg/notification"
	"go.uber.org/zap"
)

// Reloader is the part of Service the watchers drive.
type Reloader interface {
	Reload(key string) (bool, error)
}

// BucketEvents are the notifications a BucketWatcher subscribes to.
var BucketEvents = []string{string(notification.ObjectCreatedAll), string(notification.ObjectRemovedAll)}

// BucketWatcher reloads cached assets when their objects change in storage.
type BucketWatcher struct {
	client storage.Client
	bucket string
	src    *BucketSource
	target Reloader
	logger *zap.Logger
}

// NewBucketWatcher creates a watcher for the objects of src.
func NewBucketWatcher(client storage.Client, bucket string, src *BucketSource, target Reloader, logger *zap.Logger) *BucketWatcher {
	return &BucketWatcher{client: client, bucket: bucket, src: src, target: target, logger: logger}
}

// Run consumes bucket notifications until ctx is done or the stream ends.
// The client closes the stream when ctx is cancelled.
func (w *BucketWatcher) Run(ctx context.Context) error {
	prefix := w.src.Object("")
	events := w.client.ListenBucketNotification(ctx, w.bucket, prefix, "", BucketEvents)
	w.logger.Info("Watching bucket", zap.String("bucket", w.bucket), zap.String("prefix", prefix))

	for info := range events {
		if info.Err != nil {
			w.logger.Warn("Bucket notification error", zap.Error(info.Err))
			continue
		}
		for _, rec := range info.Records {
			object, err := url.QueryUnescape(rec.S3.Object.Key)
			if err != nil {
				object = rec.S3.Object.Key
			}
			key, ok := w.src.Key(object)
			if !ok {
				continue
			}
			reload(w.target, w.logger, key, rec.EventName)
		}
	}
	w.logger.Info("Bucket watch stopped", zap.String("bucket", w.bucket))
	return nil
}

// DirWatcher reloads cached assets when their files change on disk.
type DirWatcher struct {
	src    *DirSource
	target Reloader
	logger *zap.Logger
}

// NewDirWatcher creates a watcher for the files of src.
func NewDirWatcher(src *DirSource, target Reloader, logger *zap.Logger) *DirWatcher {
	return &DirWatcher{src: src, target: target, logger: logger}
}

// Run watches the source tree until ctx is done.
func (w *DirWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.src.Root()); err != nil {
		return err
	}
	w.logger.Info("Watching directory", zap.String("root", w.src.Root()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Directory watch error", zap.Error(err))
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(watcher, ev)
		}
	}
}

func (w *DirWatcher) handle(watcher *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if fi, err := statDir(ev.Name); err == nil && fi {
			if err := w.addTree(watcher, ev.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", zap.String("dir", ev.Name), zap.Error(err))
			}
			return
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	key, ok := w.src.Key(ev.Name)
	if !ok {
		return
	}
	reload(w.target, w.logger, key, ev.Op.String())
}

// addTree watches root and every directory below it.
func (w *DirWatcher) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if err := watcher.Add(p); err != nil {
				return fmt.Errorf("watch %s: %w", p, err)
			}
		}
		return nil
	})
}

func statDir(p string) (bool, error) {
	info, err := os.Stat(p)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func reload(target Reloader, logger *zap.Logger, key, event string) {
	ok, err := target.Reload(key)
	if err != nil {
		logger.Warn("Reload after change failed", zap.String("key", key), zap.String("event", event), zap.Error(err))
		return
	}
	if ok {
		logger.Debug("Change picked up", zap.String("key", key), zap.String("event", event))
	}
}

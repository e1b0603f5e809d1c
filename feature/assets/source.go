package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"asset-streamer/core/storage"

	"github.com/minio/minio-go/v7"
)

var (
	// ErrNotFound is returned when a key does not exist in the source.
	ErrNotFound = errors.New("asset not found")
	// ErrInvalidKey is returned for empty keys or keys escaping the source root.
	ErrInvalidKey = errors.New("invalid asset key")
)

// Source is where asset bytes come from.
type Source interface {
	// Stat returns the size of key in bytes.
	Stat(ctx context.Context, key string) (int64, error)
	// Open streams the content of key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// CleanKey normalizes key to a slash separated relative path.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return cleaned, nil
}

// BucketSource reads assets from an object storage bucket.
type BucketSource struct {
	client storage.Client
	bucket string
	prefix string
}

// NewBucketSource creates a source reading bucket objects under prefix.
func NewBucketSource(client storage.Client, bucket, prefix string) *BucketSource {
	return &BucketSource{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Object returns the object name of key.
func (s *BucketSource) Object(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// Key returns the asset key of an object name, or false if the object lies
// outside the prefix.
func (s *BucketSource) Key(object string) (string, bool) {
	if s.prefix == "" {
		return object, object != ""
	}
	key, ok := strings.CutPrefix(object, s.prefix+"/")
	return key, ok && key != ""
}

func (s *BucketSource) Stat(ctx context.Context, key string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.bucket, s.Object(key), minio.StatObjectOptions{})
	if err != nil {
		if storage.IsNotFound(err) {
			return 0, fmt.Errorf("%q: %w", key, ErrNotFound)
		}
		return 0, fmt.Errorf("stat %q: %w", key, err)
	}
	return info.Size, nil
}

func (s *BucketSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.Object(key), minio.GetObjectOptions{})
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return obj, nil
}

// DirSource reads assets from a local directory.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: filepath.Clean(dir)}
}

// Root returns the source directory.
func (s *DirSource) Root() string { return s.root }

// Path returns the file path of key.
func (s *DirSource) Path(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Key returns the asset key of a file path under the root.
func (s *DirSource) Key(file string) (string, bool) {
	rel, err := filepath.Rel(s.root, file)
	if err != nil {
		return "", false
	}
	key, err := CleanKey(filepath.ToSlash(rel))
	return key, err == nil
}

func (s *DirSource) Stat(_ context.Context, key string) (int64, error) {
	p, err := s.Path(key)
	if err != nil {
		return 0, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%q: %w", key, ErrNotFound)
		}
		return 0, err
	}
	if fi.IsDir() {
		return 0, fmt.Errorf("%q is a directory: %w", key, ErrNotFound)
	}
	return fi.Size(), nil
}

func (s *DirSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

package assets

import "time"

// Source kinds.
const (
	SourceBucket = "bucket"
	SourceDir    = "dir"
)

// Config holds configuration for asset serving.
type Config struct {
	// Source selects where assets are read from (bucket, dir).
	Source string `mapstructure:"source" default:"bucket"`
	// Dir is the root directory for the dir source.
	Dir string `mapstructure:"dir" default:"./assets"`
	// Prefix is prepended to every key for the bucket source.
	Prefix string `mapstructure:"prefix" default:""`
	// Watch reloads cached assets when the source changes.
	Watch bool `mapstructure:"watch" default:"false"`
	// PostSync computes ETags in the post-sync phase instead of during the load.
	PostSync bool `mapstructure:"post_sync" default:"true"`
	// ReadTimeout bounds a single read from the source.
	ReadTimeout time.Duration `mapstructure:"read_timeout" default:"30s"`
}

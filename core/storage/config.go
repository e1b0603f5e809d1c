package storage

import (
	"strings"
	"time"
)

// Config holds the object storage connection settings.
type Config struct {
	// Endpoint is the host:port of the MinIO/S3 service. A scheme is tolerated.
	Endpoint string `mapstructure:"endpoint" default:"localhost:9000"`
	// AccessKey is the access key ID.
	AccessKey string `mapstructure:"access_key" default:"minioadmin"`
	// SecretKey is the secret access key.
	SecretKey string `mapstructure:"secret_key" default:"minioadmin"`
	// UseSSL enables TLS.
	UseSSL bool `mapstructure:"use_ssl" default:"false"`
	// Bucket holds the assets served by the bucket source.
	Bucket string `mapstructure:"bucket" default:"assets"`
	// Region is the bucket location, empty for MinIO.
	Region string `mapstructure:"region" default:""`
	// DialTimeout bounds connection setup and TLS handshakes.
	DialTimeout time.Duration `mapstructure:"dial_timeout" default:"30s"`
}

// Host returns the endpoint without a URL scheme, as minio.New expects it.
func (c Config) Host() string {
	host := strings.TrimPrefix(c.Endpoint, "http://")
	return strings.TrimPrefix(host, "https://")
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout <= 0 {
		return 30 * time.Second
	}
	return c.DialTimeout
}

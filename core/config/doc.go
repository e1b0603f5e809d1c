// Package config loads the application configuration.
//
// Values come from the environment, optionally seeded from a .env file in the
// given directory. Every section is a Config struct owned by the package it
// configures; its `default` tags supply the fallback values and its
// `mapstructure` tags form the key, so CACHE_BUDGET sets Cache.Budget.
//
// Sections:
//   - Server: listen port, API key, shutdown timeout
//   - Storage: MinIO/S3 endpoint, credentials, bucket
//   - Log: level and encoding
//   - Database: optional MySQL catalog
//   - Cache: resource manager budget, intervals and generation lifetimes
//   - Assets: source kind, directory or prefix, watching
//
// Usage:
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    return err
//	}
//	budget, err := cfg.Cache.BudgetBytes()
package config

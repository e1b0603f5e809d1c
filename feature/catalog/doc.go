// Package catalog keeps per-asset metadata in the database.
//
// An Entry records the object an asset key maps to, its size and the cache
// flags (pinned, independent, post-sync) the asset service applies when it
// registers the asset. Repository implements assets.Catalog; a Syncer fills
// the table from a bucket listing without touching flags an operator set.
package catalog

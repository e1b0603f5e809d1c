package catalog

import (
	"context"
	"errors"
	"fmt"

	"asset-streamer/feature/assets"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned for keys missing from the catalog. It matches
// assets.ErrNotFound so the asset service falls back to the source.
var ErrNotFound = fmt.Errorf("catalog entry: %w", assets.ErrNotFound)

// syncColumns are the columns Sync may overwrite on an existing entry.
var syncColumns = []string{"object", "size", "updated_at"}

// Repository stores catalog entries.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository over db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the catalog table.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}
	return nil
}

// Get returns the entry of key.
func (r *Repository) Get(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	err := r.db.WithContext(ctx).Where("asset_key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog entry %q: %w", key, err)
	}
	return &e, nil
}

// List returns entries ordered by key. A non-positive limit returns all.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	q := r.db.WithContext(ctx).Order("asset_key")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	return entries, nil
}

// Upsert inserts entries, refreshing the object columns of existing keys and
// leaving their flags alone.
func (r *Repository) Upsert(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset_key"}},
		DoUpdates: clause.AssignmentColumns(syncColumns),
	}).Create(&entries).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %d catalog entries: %w", len(entries), err)
	}
	return nil
}

// Delete removes key from the catalog.
func (r *Repository) Delete(ctx context.Context, key string) error {
	res := r.db.WithContext(ctx).Where("asset_key = ?", key).Delete(&Entry{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete catalog entry %q: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return nil
}

// Lookup implements assets.Catalog.
func (r *Repository) Lookup(ctx context.Context, key string) (assets.Meta, error) {
	e, err := r.Get(ctx, key)
	if err != nil {
		return assets.Meta{}, err
	}
	return assets.Meta{
		Size:        e.Size,
		Pinned:      e.Pinned,
		Independent: e.Independent,
		PostSync:    e.PostSync,
	}, nil
}

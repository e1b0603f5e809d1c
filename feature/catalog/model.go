package catalog

import "time"

// Entry is the catalog row of one asset. Flags are administered in the
// database; Sync only refreshes the object columns.
type Entry struct {
	Key         string    `gorm:"primaryKey;column:asset_key;type:varchar(512)" json:"key"`
	Object      string    `gorm:"column:object;type:varchar(1024);not null" json:"object"`
	Size        int64     `gorm:"column:size;not null" json:"size"`
	Pinned      bool      `gorm:"column:pinned;not null" json:"pinned"`
	Independent bool      `gorm:"column:independent;not null" json:"independent"`
	PostSync    bool      `gorm:"column:post_sync;not null" json:"post_sync"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Entry) TableName() string { return "asset_catalog" }

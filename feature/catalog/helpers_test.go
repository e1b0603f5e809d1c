package catalog

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var entryColumns = []string{"asset_key", "object", "size", "pinned", "independent", "post_sync", "updated_at"}

// setupMockDB creates a mock GORM DB for testing.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func entryRows(entries ...Entry) *sqlmock.Rows {
	rows := sqlmock.NewRows(entryColumns)
	for _, e := range entries {
		rows.AddRow(e.Key, e.Object, e.Size, e.Pinned, e.Independent, e.PostSync, e.UpdatedAt)
	}
	return rows
}

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

package catalog

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"regexp"
	"testing"

	"asset-streamer/core/storage/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestApp(t *testing.T, syncer bool) (*fiber.App, sqlmock.Sqlmock, *mocks.Client) {
	t.Helper()
	db, sqlMock := setupMockDB(t)
	repo := NewRepository(db)
	client := new(mocks.Client)

	var s *Syncer
	if syncer {
		s = NewSyncer(repo, client, "assets", "", zap.NewNop())
	}
	app := fiber.New()
	require.NoError(t, NewFeature(repo, s, zap.NewNop()).Load(app))
	return app, sqlMock, client
}

func TestHandleList(t *testing.T) {
	app, sqlMock, _ := setupTestApp(t, false)
	sqlMock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `asset_catalog` ORDER BY asset_key LIMIT")).
		WillReturnRows(entryRows(Entry{Key: "a.png", Object: "a.png", Size: 3, UpdatedAt: testTime}))

	resp, err := app.Test(httptest.NewRequest("GET", "/catalog?limit=5&offset=10", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var entries []Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "a.png", entries[0].Key)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestHandleGet(t *testing.T) {
	tests := []struct {
		name   string
		rows   *sqlmock.Rows
		err    error
		status int
	}{
		{"found", entryRows(Entry{Key: "dir/a b.png", Object: "dir/a b.png", Size: 3, UpdatedAt: testTime}), nil, fiber.StatusOK},
		{"missing", sqlmock.NewRows(entryColumns), nil, fiber.StatusNotFound},
		{"database error", nil, errors.New("gone away"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, sqlMock, _ := setupTestApp(t, false)
			q := sqlMock.ExpectQuery(regexp.QuoteMeta(selectByKey))
			if tt.err != nil {
				q.WillReturnError(tt.err)
			} else {
				q.WillReturnRows(tt.rows)
			}

			resp, err := app.Test(httptest.NewRequest("GET", "/catalog/dir/a%20b.png", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == fiber.StatusOK {
				var e Entry
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
				assert.Equal(t, "dir/a b.png", e.Key)
			}
			assert.NoError(t, sqlMock.ExpectationsWereMet())
		})
	}
}

func TestHandleSync(t *testing.T) {
	t.Run("without bucket", func(t *testing.T) {
		app, _, _ := setupTestApp(t, false)
		resp, err := app.Test(httptest.NewRequest("POST", "/catalog/sync", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotImplemented, resp.StatusCode)
	})

	t.Run("with bucket", func(t *testing.T) {
		app, sqlMock, client := setupTestApp(t, true)
		client.On("ListObjects", mock.Anything, "assets", mock.Anything).
			Return(objects(minio.ObjectInfo{Key: "a.png", Size: 1, LastModified: testTime}))
		sqlMock.ExpectBegin()
		sqlMock.ExpectExec(regexp.QuoteMeta("INSERT INTO `asset_catalog`")).WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectCommit()

		resp, err := app.Test(httptest.NewRequest("POST", "/catalog/sync", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var res SyncResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, SyncResult{Listed: 1, Written: 1}, res)
	})
}

func TestHandleReconcile(t *testing.T) {
	app, sqlMock, client := setupTestApp(t, true)
	sqlMock.ExpectQuery(regexp.QuoteMeta(selectAll)).WillReturnRows(sqlmock.NewRows(entryColumns))
	client.On("ListObjects", mock.Anything, "assets", mock.Anything).
		Return(objects(minio.ObjectInfo{Key: "a.png", Size: 1}))

	resp, err := app.Test(httptest.NewRequest("GET", "/catalog/reconcile", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 1, report.Missing)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "a.png", report.Results[0].Key)
}

func TestFeature(t *testing.T) {
	f := NewFeature(nil, nil, zap.NewNop())
	assert.Equal(t, "catalog", f.Name())
	assert.False(t, f.IsEnabled())
}

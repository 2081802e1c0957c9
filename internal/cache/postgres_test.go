package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/raysh454/webscan/internal/cache"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		DriverName:           "postgres",
		Conn:                 db,
		PreferSimpleProtocol: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func TestPostgresStore_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	store := cache.NewPostgresStore(db)
	rec := cache.Record{URL: "https://example.com", Status: "completed", Result: []byte(`{"version":1}`), Timestamp: 10, ExpiresAt: 20}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "scans" .* ON CONFLICT \("url"\) DO UPDATE SET "status"="excluded"."status"`).
		WithArgs(rec.URL, rec.Status, string(rec.Result), rec.Timestamp, rec.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Upsert(context.Background(), rec)
	assert.NoError(t, err)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresStore_UpsertError(t *testing.T) {
	db, mock := newMockDB(t)
	store := cache.NewPostgresStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "scans"`).WillReturnError(errors.New("db error"))
	mock.ExpectRollback()

	err := store.Upsert(context.Background(), cache.Record{URL: "u", Status: "completed"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "upsert scan u")
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresStore_Get(t *testing.T) {
	db, mock := newMockDB(t)
	store := cache.NewPostgresStore(db)

	mock.ExpectQuery(`SELECT \* FROM "scans" WHERE url = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"url", "status", "result", "timestamp", "expires_at"}).
			AddRow("https://example.com", "completed", `{"version":1}`, int64(10), int64(20)))

	rec, err := store.Get(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, cache.Record{URL: "https://example.com", Status: "completed", Result: []byte(`{"version":1}`), Timestamp: 10, ExpiresAt: 20}, rec)

	mock.ExpectQuery(`SELECT \* FROM "scans" WHERE url = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"url", "status", "result", "timestamp", "expires_at"}))
	_, err = store.Get(context.Background(), "https://missing.example")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	mock.ExpectQuery(`SELECT \* FROM "scans"`).WillReturnError(errors.New("conn closed"))
	_, err = store.Get(context.Background(), "https://example.com")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrNotFound)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresStore_EnsureSchemaAndPing(t *testing.T) {
	db, mock := newMockDB(t)
	store := cache.NewPostgresStore(db)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS scans`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("gone"))

	assert.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, store.Ping(context.Background()))
	assert.ErrorContains(t, store.Ping(context.Background()), "ping postgres")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

package cache

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/raysh454/webscan/internal/logging"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS scans (
    url        TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    result     TEXT NOT NULL,
    timestamp  BIGINT NOT NULL,
    expires_at BIGINT NOT NULL
)`

// scanRow maps the scans table.
type scanRow struct {
	URL       string `gorm:"column:url;primaryKey"`
	Status    string `gorm:"column:status;not null"`
	Result    string `gorm:"column:result;type:text;not null"`
	Timestamp int64  `gorm:"column:timestamp;not null"`
	ExpiresAt int64  `gorm:"column:expires_at;not null"`
}

func (scanRow) TableName() string { return "scans" }

// PostgresStore keeps records in Postgres through gorm.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func NewPostgresConnector(dsn string, logger logging.Logger) Connector {
	return func(ctx context.Context) (Store, error) {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store := NewPostgresStore(db)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, err
		}
		logger.Debug("opened postgres cache")
		return store, nil
	}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec(postgresSchema).Error; err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec Record) error {
	row := scanRow{
		URL:       rec.URL,
		Status:    rec.Status,
		Result:    string(rec.Result),
		Timestamp: rec.Timestamp,
		ExpiresAt: rec.ExpiresAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "result", "timestamp", "expires_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert scan %s: %w", rec.URL, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, url string) (Record, error) {
	var row scanRow
	err := s.db.WithContext(ctx).Where("url = ?", url).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get scan %s: %w", url, err)
	}
	return Record{
		URL:       row.URL,
		Status:    row.Status,
		Result:    []byte(row.Result),
		Timestamp: row.Timestamp,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

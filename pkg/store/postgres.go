package store

import (
	"context"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresStore persists records in a Postgres table via GORM. The table is
// migrated on construction.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return NewPostgresStoreWithDB(db)
}

// NewPostgresStoreWithDB wraps an existing GORM handle; used by tests and by
// applications that manage their own connection pool.
func NewPostgresStoreWithDB(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&BlockedRequest{}); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Append(ctx context.Context, record BlockedRequest) error {
	return s.db.WithContext(ctx).Create(&record).Error
}

func (s *PostgresStore) List(ctx context.Context, offset, limit int) ([]BlockedRequest, int, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&BlockedRequest{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).Order("timestamp DESC").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []BlockedRequest
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, int(total), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	records, _, err := s.List(ctx, 0, 0)
	if err != nil {
		return Stats{}, err
	}
	return statsOf(records), nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&BlockedRequest{}).Error
}

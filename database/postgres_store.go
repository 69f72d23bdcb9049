package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// CartRecord is the relational row holding one serialized cart.
type CartRecord struct {
	UserID    string `gorm:"primaryKey;column:user_id"`
	Data      []byte `gorm:"column:data"`
	UpdatedAt time.Time
}

func (CartRecord) TableName() string { return "cart_records" }

// ConnectPostgres opens a gorm connection and migrates the cart_records table.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.AutoMigrate(&CartRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cart_records: %w", err)
	}
	return db, nil
}

type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec CartRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	return upsertRecord(s.db.WithContext(ctx), key, value)
}

// Update holds the key's row lock for the whole transaction. A missing key
// first gets an empty placeholder row so there is always a row to lock;
// concurrent first writes queue behind it instead of overwriting each other.
func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		placeholder := CartRecord{UserID: key, Data: []byte{}, UpdatedAt: time.Now().UTC()}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&placeholder)
		if res.Error != nil {
			return res.Error
		}

		var current []byte
		found := res.RowsAffected == 0
		if found {
			var rec CartRecord
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id = ?", key).
				Take(&rec).Error
			if err != nil {
				return err
			}
			current = rec.Data
		}

		next, err := fn(current, found)
		if err != nil {
			return err
		}
		return upsertRecord(tx, key, next)
	})
}

func upsertRecord(db *gorm.DB, key string, value []byte) error {
	rec := CartRecord{UserID: key, Data: value, UpdatedAt: time.Now().UTC()}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

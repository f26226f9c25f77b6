package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// kvEntry is the single table backing SQLDB.
type kvEntry struct {
	Key   []byte `gorm:"primaryKey"`
	Value []byte `gorm:"not null"`
}

func (kvEntry) TableName() string { return "shade_kv" }

// SQLDB stores the key space in one SQL table through gorm. Batches run in a
// single database transaction.
type SQLDB struct {
	db *gorm.DB
}

// NewSQLDB opens a SQL database for the given driver ("sqlite" or
// "postgres") and migrates the key-value table.
func NewSQLDB(driver, dsn string) (*SQLDB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("storage: unsupported sql driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}
	if err := db.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("storage: migrate kv table: %w", err)
	}
	return &SQLDB{db: db}, nil
}

func upsert(tx *gorm.DB, key, value []byte) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&kvEntry{Key: key, Value: value}).Error
}

// Put inserts or updates a key-value pair.
func (s *SQLDB) Put(key []byte, value []byte) error {
	return upsert(s.db, key, value)
}

// Get retrieves a value for a given key.
func (s *SQLDB) Get(key []byte) ([]byte, error) {
	var entry kvEntry
	err := s.db.Where("key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

// Delete removes the key.
func (s *SQLDB) Delete(key []byte) error {
	return s.db.Where("key = ?", key).Delete(&kvEntry{}).Error
}

// Write applies the batch inside one transaction.
func (s *SQLDB) Write(batch *Batch) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return batch.Replay(
			func(key, value []byte) error { return upsert(tx, key, value) },
			func(key []byte) error { return tx.Where("key = ?", key).Delete(&kvEntry{}).Error },
		)
	})
}

// Close releases the underlying connection pool.
func (s *SQLDB) Close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Package sqlite implements a SQLite-based browserstore driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/silversurfers/silvergate/internal/browserstore"
)

func init() {
	browserstore.Register("sqlite", NewDriver)
}

// slotRow is the GORM model for a single scope slot.
type slotRow struct {
	ScopeID   string `gorm:"primaryKey;column:scope_id"`
	Slot      string `gorm:"primaryKey;column:slot"`
	Value     string `gorm:"column:value"`
	UpdatedAt int64  `gorm:"column:updated_at"`
}

func (slotRow) TableName() string {
	return "browser_slots"
}

// Driver implements the browserstore.Driver interface using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *browserstore.DriverConfig) (browserstore.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init initializes the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	dbPath := filepath.Join(d.dataDir, "silvergate.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	if err := db.AutoMigrate(&slotRow{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	return nil
}

// Close releases the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Driver) Get(ctx context.Context, scopeID, slot string) (string, error) {
	if d.db == nil {
		return "", browserstore.ErrClosed
	}

	var row slotRow
	err := d.db.WithContext(ctx).
		Where("scope_id = ? AND slot = ?", scopeID, slot).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", browserstore.ErrNotFound
		}
		return "", err
	}
	return row.Value, nil
}

func (d *Driver) Put(ctx context.Context, scopeID, slot, value string) error {
	if d.db == nil {
		return browserstore.ErrClosed
	}

	row := slotRow{
		ScopeID:   scopeID,
		Slot:      slot,
		Value:     value,
		UpdatedAt: time.Now().Unix(),
	}
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope_id"}, {Name: "slot"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
}

func (d *Driver) Delete(ctx context.Context, scopeID, slot string) error {
	if d.db == nil {
		return browserstore.ErrClosed
	}

	// Deleting an absent slot is a no-op success.
	return d.db.WithContext(ctx).
		Where("scope_id = ? AND slot = ?", scopeID, slot).
		Delete(&slotRow{}).Error
}

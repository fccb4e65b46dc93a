// Package gormstore implements store.Store on top of gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"it-asset-manager-api/pkg/models"
	"it-asset-manager-api/pkg/store"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Asset is the gorm model for the assets table
type Asset struct {
	ID           int64      `gorm:"primaryKey;autoIncrement"`
	SerialNumber string     `gorm:"column:serial_number;not null;uniqueIndex"`
	Name         string     `gorm:"not null"`
	PurchaseDate *time.Time `gorm:"column:purchase_date"`
	Status       string     `gorm:"not null;default:'Em Estoque'"`
	CreatedAt    time.Time  `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt    time.Time  `gorm:"not null;autoUpdateTime:false"`
}

// TableName pins the table name shared with the raw SQL store
func (Asset) TableName() string { return "assets" }

func (a Asset) toModel() models.Asset {
	out := models.Asset{
		ID:           a.ID,
		SerialNumber: a.SerialNumber,
		Name:         a.Name,
		Status:       models.Status(a.Status),
		CreatedAt:    models.NormalizeTime(a.CreatedAt),
		UpdatedAt:    models.NormalizeTime(a.UpdatedAt),
	}
	if a.PurchaseDate != nil {
		t := models.NormalizeTime(*a.PurchaseDate)
		out.PurchaseDate = &t
	}
	return out
}

// Store is the gorm-backed asset store
type Store struct {
	db    *gorm.DB
	clock store.Clock
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for created_at/updated_at
func WithClock(c store.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open connects with the gorm driver for dialect, migrates the assets table
// and returns a ready Store. log may be nil.
func Open(ctx context.Context, dialect, dsn string, log *logrus.Logger, opts ...Option) (*Store, error) {
	var dialector gorm.Dialector
	switch dialect {
	case DialectSQLite:
		dialector = sqlite.Open(dsn)
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	}
	if log != nil {
		cfg.Logger = logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "access connection pool")
	}
	if dialect == DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(&Asset{}); err != nil {
		sqlDB.Close()
		return nil, pkgerrors.Wrap(err, "migrate assets")
	}

	return New(db, opts...), nil
}

// New wraps an open gorm handle. The assets table must exist.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new asset
func (s *Store) Create(ctx context.Context, req models.CreateAssetRequest) (models.Asset, error) {
	const op = "create"
	if err := req.Validate(); err != nil {
		return models.Asset{}, store.Invalid(op, err)
	}

	now := models.NormalizeTime(s.clock())
	rec := Asset{
		SerialNumber: req.SerialNumber,
		Name:         req.Name,
		PurchaseDate: req.PurchaseDate,
		Status:       string(req.Status),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Asset{}, store.Conflict(op, req.SerialNumber, err)
		}
		return models.Asset{}, store.Internal(op, pkgerrors.Wrap(err, "insert asset"))
	}
	return rec.toModel(), nil
}

// List returns every asset, newest first
func (s *Store) List(ctx context.Context) ([]models.Asset, error) {
	var recs []Asset
	if err := s.db.WithContext(ctx).Order("created_at desc").Order("id desc").Find(&recs).Error; err != nil {
		return nil, store.Internal("list", pkgerrors.Wrap(err, "select assets"))
	}

	assets := make([]models.Asset, 0, len(recs))
	for _, r := range recs {
		assets = append(assets, r.toModel())
	}
	return assets, nil
}

// Get returns the asset with id
func (s *Store) Get(ctx context.Context, id int64) (models.Asset, error) {
	var rec Asset
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return models.Asset{}, classifyLookup("get", id, err)
	}
	return rec.toModel(), nil
}

// Update overwrites the supplied fields of asset id and refreshes updated_at
func (s *Store) Update(ctx context.Context, id int64, req models.UpdateAssetRequest) (models.Asset, error) {
	const op = "update"
	if err := req.Validate(); err != nil {
		return models.Asset{}, store.Invalid(op, err)
	}

	var out models.Asset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Asset
		if err := tx.First(&rec, id).Error; err != nil {
			return classifyLookup(op, id, err)
		}

		current := rec.toModel()
		req.Apply(&current)
		current.UpdatedAt = store.NextUpdatedAt(current.UpdatedAt, s.clock())

		// A map is used so nil purchase_date is written instead of skipped
		res := tx.Model(&Asset{}).Where("id = ?", id).Updates(map[string]interface{}{
			"serial_number": current.SerialNumber,
			"name":          current.Name,
			"purchase_date": current.PurchaseDate,
			"status":        string(current.Status),
			"updated_at":    current.UpdatedAt,
		})
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return store.Conflict(op, current.SerialNumber, res.Error)
			}
			return store.Internal(op, pkgerrors.Wrap(res.Error, "update asset"))
		}
		if res.RowsAffected == 0 {
			return store.NotFound(op, id)
		}

		var reloaded Asset
		if err := tx.First(&reloaded, id).Error; err != nil {
			return classifyLookup(op, id, err)
		}
		out = reloaded.toModel()
		return nil
	})
	if err != nil {
		var se *store.Error
		if !errors.As(err, &se) {
			// commit failures come back from gorm unclassified
			err = store.Internal(op, pkgerrors.Wrap(err, "commit"))
		}
		return models.Asset{}, err
	}
	return out, nil
}

// Delete removes asset id
func (s *Store) Delete(ctx context.Context, id int64) error {
	const op = "delete"
	res := s.db.WithContext(ctx).Delete(&Asset{}, id)
	if res.Error != nil {
		return store.Internal(op, pkgerrors.Wrap(res.Error, "delete asset"))
	}
	if res.RowsAffected == 0 {
		return store.NotFound(op, id)
	}
	return nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return store.Internal("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return store.Internal("ping", err)
	}
	return nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func classifyLookup(op string, id int64, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.NotFound(op, id)
	}
	return store.Internal(op, pkgerrors.Wrap(err, "select asset"))
}

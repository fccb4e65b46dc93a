// Package sqlstore implements store.Store with hand-written SQL over sqlx.
// It runs against SQLite (mattn/go-sqlite3) or PostgreSQL (pgx stdlib).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"it-asset-manager-api/pkg/models"
	"it-asset-manager-api/pkg/store"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

const assetColumns = `id, serial_number, name, purchase_date, status, created_at, updated_at`

// Store is the raw SQL asset store
type Store struct {
	db    *sqlx.DB
	clock store.Clock
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for created_at/updated_at
func WithClock(c store.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open connects to the database for dialect, creates the schema if needed and
// returns a ready Store.
func Open(ctx context.Context, dialect, dsn string, opts ...Option) (*Store, error) {
	driver, err := driverName(dialect)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open database")
	}
	if dialect == DialectSQLite {
		// SQLite serialises writers; one connection avoids SQLITE_BUSY between pool members
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "ping database")
	}

	if _, err := db.ExecContext(ctx, schema[dialect]); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "create schema")
	}

	return New(db, opts...), nil
}

// New wraps an already opened database. The schema must exist.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func driverName(dialect string) (string, error) {
	switch dialect {
	case DialectSQLite:
		return "sqlite3", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", dialect)
	}
}

// assetRow mirrors one row of the assets table
type assetRow struct {
	ID           int64        `db:"id"`
	SerialNumber string       `db:"serial_number"`
	Name         string       `db:"name"`
	PurchaseDate sql.NullTime `db:"purchase_date"`
	Status       string       `db:"status"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

func (r assetRow) toModel() models.Asset {
	a := models.Asset{
		ID:           r.ID,
		SerialNumber: r.SerialNumber,
		Name:         r.Name,
		Status:       models.Status(r.Status),
		CreatedAt:    models.NormalizeTime(r.CreatedAt),
		UpdatedAt:    models.NormalizeTime(r.UpdatedAt),
	}
	if r.PurchaseDate.Valid {
		t := models.NormalizeTime(r.PurchaseDate.Time)
		a.PurchaseDate = &t
	}
	return a
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create inserts a new asset
func (s *Store) Create(ctx context.Context, req models.CreateAssetRequest) (models.Asset, error) {
	const op = "create"
	if err := req.Validate(); err != nil {
		return models.Asset{}, store.Invalid(op, err)
	}

	now := models.NormalizeTime(s.clock())

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Asset{}, store.Internal(op, pkgerrors.Wrap(err, "begin transaction"))
	}
	defer tx.Rollback()

	// Only the id comes back from RETURNING; the row is reloaded with SELECT so
	// timestamp columns decode through their declared types.
	q := tx.Rebind(`
		INSERT INTO assets (serial_number, name, purchase_date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err = tx.QueryRowxContext(ctx, q, req.SerialNumber, req.Name, nullTime(req.PurchaseDate), string(req.Status), now, now).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Asset{}, store.Conflict(op, req.SerialNumber, err)
		}
		return models.Asset{}, store.Internal(op, pkgerrors.Wrap(err, "insert asset"))
	}

	row, err := getRow(ctx, tx, id)
	if err != nil {
		return models.Asset{}, store.Internal(op, pkgerrors.Wrap(err, "reload asset"))
	}
	if err := tx.Commit(); err != nil {
		return models.Asset{}, store.Internal(op, pkgerrors.Wrap(err, "commit"))
	}
	return row.toModel(), nil
}

// List returns every asset, newest first
func (s *Store) List(ctx context.Context) ([]models.Asset, error) {
	var rows []assetRow
	q := `SELECT ` + assetColumns + ` FROM assets ORDER BY created_at DESC, id DESC`
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, store.Internal("list", pkgerrors.Wrap(err, "select assets"))
	}

	assets := make([]models.Asset, 0, len(rows))
	for _, r := range rows {
		assets = append(assets, r.toModel())
	}
	return assets, nil
}

// Get returns the asset with id
func (s *Store) Get(ctx context.Context, id int64) (models.Asset, error) {
	row, err := getRow(ctx, s.db, id)
	if err != nil {
		return models.Asset{}, classifyLookup("get", id, err)
	}
	return row.toModel(), nil
}

// Update overwrites the supplied fields of asset id and refreshes updated_at
func (s *Store) Update(ctx context.Context, id int64, req models.UpdateAssetRequest) (models.Asset, error) {
	const op = "update"
	if err := req.Validate(); err != nil {
		return models.Asset{}, store.Invalid(op, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Asset{}, store.Internal(op, pkgerrors.Wrap(err, "begin transaction"))
	}
	defer tx.Rollback()

	row, err := getRow(ctx, tx, id)
	if err != nil {
		return models.Asset{}, classifyLookup(op, id, err)
	}

	current := row.toModel()
	req.Apply(&current)
	current.UpdatedAt = store.NextUpdatedAt(current.UpdatedAt, s.clock())

	q := tx.Rebind(`
		UPDATE assets
		SET serial_number = ?, name = ?, purchase_date = ?, status = ?, updated_at = ?
		WHERE id = ?`)

	res, err := tx.ExecContext(ctx, q, current.SerialNumber, current.Name, nullTime(current.PurchaseDate), string(current.Status), current.UpdatedAt, id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Asset{}, store.Conflict(op, current.SerialNumber, err)
		}
		return models.Asset{}, store.Internal(op, pkgerrors.Wrap(err, "update asset"))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Asset{}, store.NotFound(op, id)
	}

	out, err := getRow(ctx, tx, id)
	if err != nil {
		return models.Asset{}, classifyLookup(op, id, err)
	}
	if err := tx.Commit(); err != nil {
		return models.Asset{}, store.Internal(op, pkgerrors.Wrap(err, "commit"))
	}
	return out.toModel(), nil
}

// Delete removes asset id
func (s *Store) Delete(ctx context.Context, id int64) error {
	const op = "delete"
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM assets WHERE id = ?`), id)
	if err != nil {
		return store.Internal(op, pkgerrors.Wrap(err, "delete asset"))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Internal(op, pkgerrors.Wrap(err, "rows affected"))
	}
	if n == 0 {
		return store.NotFound(op, id)
	}
	return nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return store.Internal("ping", err)
	}
	return nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func getRow(ctx context.Context, q queryer, id int64) (assetRow, error) {
	var row assetRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(`SELECT `+assetColumns+` FROM assets WHERE id = ?`), id)
	return row, err
}

func classifyLookup(op string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.NotFound(op, id)
	}
	return store.Internal(op, err)
}

// isUniqueViolation inspects driver error codes for a unique constraint failure
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// Package store defines the persistence contract for assets and the typed
// errors every implementation reports.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"it-asset-manager-api/pkg/models"
)

// Store provides durable CRUD on assets
type Store interface {
	Create(ctx context.Context, req models.CreateAssetRequest) (models.Asset, error)
	List(ctx context.Context) ([]models.Asset, error)
	Get(ctx context.Context, id int64) (models.Asset, error)
	Update(ctx context.Context, id int64, req models.UpdateAssetRequest) (models.Asset, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	Close() error
}

// Kind classifies a store failure
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var (
	// ErrNotFound matches any error of KindNotFound via errors.Is
	ErrNotFound = &Error{Kind: KindNotFound}
	// ErrConflict matches any error of KindConflict via errors.Is
	ErrConflict = &Error{Kind: KindConflict}
)

// Error is the error type returned by Store implementations
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can compare against the sentinels
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// NotFound builds a KindNotFound error for op and id
func NotFound(op string, id int64) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("asset %d does not exist", id)}
}

// Conflict builds a KindConflict error for a duplicated serial number
func Conflict(op, serial string, cause error) error {
	err := fmt.Errorf("serial number %q already exists", serial)
	if cause != nil {
		err = fmt.Errorf("serial number %q already exists: %w", serial, cause)
	}
	return &Error{Kind: KindConflict, Op: op, Err: err}
}

// Internal wraps an unexpected driver failure
func Internal(op string, err error) error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// Invalid wraps a request that failed validation
func Invalid(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// KindOf reports the kind of err. Errors not produced by a store are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	return KindInternal
}

// Clock returns the current time
type Clock func() time.Time

// NextUpdatedAt returns the timestamp to store on update. It never returns a
// value at or before prev, so updatedAt strictly increases even when the clock
// resolution is coarser than the update rate.
func NextUpdatedAt(prev, now time.Time) time.Time {
	now = models.NormalizeTime(now)
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

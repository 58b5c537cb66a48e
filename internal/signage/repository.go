package signage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// DBTX is the subset of *sql.DB and *sql.Tx the SQLite repositories use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DisplayRepository persists displays.
type DisplayRepository interface {
	Create(ctx context.Context, display *Display) error
	GetByID(ctx context.Context, id string) (*Display, error)
	GetByClientID(ctx context.Context, clientID string) (*Display, error)
	List(ctx context.Context) ([]Display, error)
	Update(ctx context.Context, display *Display) error
	Delete(ctx context.Context, id string) error
}

// ViewRepository persists views.
type ViewRepository interface {
	Create(ctx context.Context, view *View) error
	GetByID(ctx context.Context, id string) (*View, error)
	List(ctx context.Context) ([]View, error)
	ListByDisplay(ctx context.Context, displayID string) ([]View, error)
	CountByScreenType(ctx context.Context, displayID, screenType string) (int, error)
	Update(ctx context.Context, view *View) error
	Delete(ctx context.Context, id string) error
}

// SlotRepository persists content slots.
type SlotRepository interface {
	Create(ctx context.Context, slot *ContentSlot) error
	GetByID(ctx context.Context, id string) (*ContentSlot, error)
	ListByView(ctx context.Context, viewID string) ([]ContentSlot, error)
	Update(ctx context.Context, slot *ContentSlot) error
	Delete(ctx context.Context, id string) error
}

// OptionRepository persists content slot options, keyed by (slot, key).
type OptionRepository interface {
	ListForSlot(ctx context.Context, slotID string) (OptionMap, error)
	Create(ctx context.Context, slotID, key string, value OptionValue) error
	Update(ctx context.Context, slotID, key string, value OptionValue) error
	Delete(ctx context.Context, slotID, key string) error
	DeleteAllForSlot(ctx context.Context, slotID string) (int64, error)
}

// Store bundles the repositories one unit of work operates on.
type Store struct {
	Displays DisplayRepository
	Views    ViewRepository
	Slots    SlotRepository
	Options  OptionRepository
}

// NewSQLiteStore returns a Store whose repositories all run on db,
// which may be a *sql.DB or a *sql.Tx.
func NewSQLiteStore(db DBTX) *Store {
	return &Store{
		Displays: NewDisplayRepository(db),
		Views:    NewViewRepository(db),
		Slots:    NewSlotRepository(db),
		Options:  NewOptionRepository(db),
	}
}

// Entity ID prefixes.
const (
	displayIDPrefix = "dsp-"
	viewIDPrefix    = "view-"
	slotIDPrefix    = "slot-"
)

// newID returns a prefixed random identifier.
func newID(prefix string) string {
	return prefix + uuid.NewString()
}

// nowUTC returns the current time truncated to the stored precision.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// formatTime renders t the way timestamps are stored.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses an ISO 8601 timestamp from SQLite.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// strPtr converts a nullable column back into a *string.
func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// boolToInt maps a bool onto SQLite's INTEGER boolean.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// rowsAffected returns the affected row count of a result.
func rowsAffected(result sql.Result) int64 {
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n
}

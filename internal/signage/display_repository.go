package signage

import (
	"context"
	"database/sql"
	"errors"
)

const displayColumns = `id, name, is_active, client_id, description, location, created_at, updated_at`

// SQLiteDisplayRepository implements DisplayRepository using SQLite.
type SQLiteDisplayRepository struct {
	db DBTX
}

// NewDisplayRepository creates a new SQLite-backed display repository.
func NewDisplayRepository(db DBTX) *SQLiteDisplayRepository {
	return &SQLiteDisplayRepository{db: db}
}

// Create inserts a new display. The ID is generated if empty.
func (r *SQLiteDisplayRepository) Create(ctx context.Context, display *Display) error {
	if display.ID == "" {
		display.ID = newID(displayIDPrefix)
	}
	now := nowUTC()
	display.CreatedAt = now
	display.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO displays (`+displayColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		display.ID, display.Name, boolToInt(display.Active), display.ClientID,
		nullStr(display.Description), nullStr(display.Location),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrClientIDTaken
		}
		return storageErr(err, "inserting display %s", display.ID)
	}
	return nil
}

// GetByID returns a single display by ID.
func (r *SQLiteDisplayRepository) GetByID(ctx context.Context, id string) (*Display, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+displayColumns+` FROM displays WHERE id = ?`, id)
	return scanDisplay(row)
}

// GetByClientID returns the display authenticated by a client identifier.
func (r *SQLiteDisplayRepository) GetByClientID(ctx context.Context, clientID string) (*Display, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+displayColumns+` FROM displays WHERE client_id = ?`, clientID)
	return scanDisplay(row)
}

// List returns all displays ordered by name.
func (r *SQLiteDisplayRepository) List(ctx context.Context) ([]Display, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+displayColumns+` FROM displays ORDER BY name, id`)
	if err != nil {
		return nil, storageErr(err, "querying displays")
	}
	defer rows.Close()

	displays := []Display{}
	for rows.Next() {
		d, err := scanDisplay(rows)
		if err != nil {
			return nil, err
		}
		displays = append(displays, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterating display rows")
	}
	return displays, nil
}

// Update writes all mutable display fields.
func (r *SQLiteDisplayRepository) Update(ctx context.Context, display *Display) error {
	now := nowUTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE displays SET name = ?, is_active = ?, client_id = ?,
			description = ?, location = ?, updated_at = ?
		 WHERE id = ?`,
		display.Name, boolToInt(display.Active), display.ClientID,
		nullStr(display.Description), nullStr(display.Location),
		formatTime(now), display.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrClientIDTaken
		}
		return storageErr(err, "updating display %s", display.ID)
	}
	if rowsAffected(result) == 0 {
		return ErrDisplayNotFound
	}
	display.UpdatedAt = now
	return nil
}

// Delete removes a single display by ID.
func (r *SQLiteDisplayRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM displays WHERE id = ?", id)
	if err != nil {
		return storageErr(err, "deleting display %s", id)
	}
	if rowsAffected(result) == 0 {
		return ErrDisplayNotFound
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDisplay scans one display row.
func scanDisplay(row rowScanner) (*Display, error) {
	var d Display
	var isActive int
	var description, location sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&d.ID, &d.Name, &isActive, &d.ClientID,
		&description, &location, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisplayNotFound
		}
		return nil, storageErr(err, "scanning display")
	}

	d.Active = isActive != 0
	d.Description = strPtr(description)
	d.Location = strPtr(location)
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

package signage

import (
	"context"
	"database/sql"
	"errors"
)

const viewColumns = `id, name, grid_columns, grid_rows, display_id, screen_type, position, created_at, updated_at`

// SQLiteViewRepository implements ViewRepository using SQLite.
type SQLiteViewRepository struct {
	db DBTX
}

// NewViewRepository creates a new SQLite-backed view repository.
func NewViewRepository(db DBTX) *SQLiteViewRepository {
	return &SQLiteViewRepository{db: db}
}

// Create inserts a new view. The ID is generated if empty.
func (r *SQLiteViewRepository) Create(ctx context.Context, view *View) error {
	if view.ID == "" {
		view.ID = newID(viewIDPrefix)
	}
	now := nowUTC()
	view.CreatedAt = now
	view.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO views (`+viewColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		view.ID, view.Name, view.Columns, view.Rows,
		view.DisplayID, view.ScreenType, view.Position,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return storageErr(err, "inserting view %s", view.ID)
	}
	return nil
}

// GetByID returns a single view by ID.
func (r *SQLiteViewRepository) GetByID(ctx context.Context, id string) (*View, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+viewColumns+` FROM views WHERE id = ?`, id)
	return scanView(row)
}

// List returns all views grouped by display and screen type, in position order.
func (r *SQLiteViewRepository) List(ctx context.Context) ([]View, error) {
	return r.queryViews(ctx,
		`SELECT `+viewColumns+` FROM views ORDER BY display_id, screen_type, position`)
}

// ListByDisplay returns the views of one display, in position order per screen type.
func (r *SQLiteViewRepository) ListByDisplay(ctx context.Context, displayID string) ([]View, error) {
	return r.queryViews(ctx,
		`SELECT `+viewColumns+` FROM views WHERE display_id = ? ORDER BY screen_type, position`,
		displayID)
}

// CountByScreenType returns how many views a display has for a screen type.
func (r *SQLiteViewRepository) CountByScreenType(ctx context.Context, displayID, screenType string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM views WHERE display_id = ? AND screen_type = ?",
		displayID, screenType).Scan(&n)
	if err != nil {
		return 0, storageErr(err, "counting views for display %s", displayID)
	}
	return n, nil
}

// Update writes all view fields.
func (r *SQLiteViewRepository) Update(ctx context.Context, view *View) error {
	now := nowUTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE views SET name = ?, grid_columns = ?, grid_rows = ?, display_id = ?,
			screen_type = ?, position = ?, updated_at = ?
		 WHERE id = ?`,
		view.Name, view.Columns, view.Rows, view.DisplayID,
		view.ScreenType, view.Position, formatTime(now), view.ID,
	)
	if err != nil {
		return storageErr(err, "updating view %s", view.ID)
	}
	if rowsAffected(result) == 0 {
		return ErrViewNotFound
	}
	view.UpdatedAt = now
	return nil
}

// Delete removes a single view by ID. Its slots must already be gone.
func (r *SQLiteViewRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM views WHERE id = ?", id)
	if err != nil {
		return storageErr(err, "deleting view %s", id)
	}
	if rowsAffected(result) == 0 {
		return ErrViewNotFound
	}
	return nil
}

// queryViews executes a query and returns a slice of View.
func (r *SQLiteViewRepository) queryViews(ctx context.Context, query string, args ...any) ([]View, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "querying views")
	}
	defer rows.Close()

	views := []View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterating view rows")
	}
	return views, nil
}

// scanView scans one view row.
func scanView(row rowScanner) (*View, error) {
	var v View
	var createdAt, updatedAt string

	err := row.Scan(&v.ID, &v.Name, &v.Columns, &v.Rows, &v.DisplayID,
		&v.ScreenType, &v.Position, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrViewNotFound
		}
		return nil, storageErr(err, "scanning view")
	}
	v.CreatedAt = parseTime(createdAt)
	v.UpdatedAt = parseTime(updatedAt)
	return &v, nil
}

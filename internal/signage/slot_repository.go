package signage

import (
	"context"
	"database/sql"
	"errors"
)

const slotColumns = `id, component_type, view_id, column_start, row_start, column_end, row_end, created_at, updated_at`

// SQLiteSlotRepository implements SlotRepository using SQLite.
type SQLiteSlotRepository struct {
	db DBTX
}

// NewSlotRepository creates a new SQLite-backed content slot repository.
func NewSlotRepository(db DBTX) *SQLiteSlotRepository {
	return &SQLiteSlotRepository{db: db}
}

// Create inserts a new content slot. The ID is generated if empty.
func (r *SQLiteSlotRepository) Create(ctx context.Context, slot *ContentSlot) error {
	if slot.ID == "" {
		slot.ID = newID(slotIDPrefix)
	}
	now := nowUTC()
	slot.CreatedAt = now
	slot.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO content_slots (`+slotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		slot.ID, slot.ComponentType, slot.ViewID,
		slot.ColumnStart, slot.RowStart, slot.ColumnEnd, slot.RowEnd,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return storageErr(err, "inserting content slot %s", slot.ID)
	}
	return nil
}

// GetByID returns a single content slot by ID.
func (r *SQLiteSlotRepository) GetByID(ctx context.Context, id string) (*ContentSlot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM content_slots WHERE id = ?`, id)
	return scanSlot(row)
}

// ListByView returns the content slots of a view in creation order.
func (r *SQLiteSlotRepository) ListByView(ctx context.Context, viewID string) ([]ContentSlot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+slotColumns+` FROM content_slots WHERE view_id = ? ORDER BY created_at, rowid`,
		viewID)
	if err != nil {
		return nil, storageErr(err, "querying content slots for view %s", viewID)
	}
	defer rows.Close()

	slots := []ContentSlot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterating content slot rows")
	}
	return slots, nil
}

// Update writes the component type, view and grid placement of a slot.
func (r *SQLiteSlotRepository) Update(ctx context.Context, slot *ContentSlot) error {
	now := nowUTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE content_slots SET component_type = ?, view_id = ?,
			column_start = ?, row_start = ?, column_end = ?, row_end = ?, updated_at = ?
		 WHERE id = ?`,
		slot.ComponentType, slot.ViewID,
		slot.ColumnStart, slot.RowStart, slot.ColumnEnd, slot.RowEnd,
		formatTime(now), slot.ID,
	)
	if err != nil {
		return storageErr(err, "updating content slot %s", slot.ID)
	}
	if rowsAffected(result) == 0 {
		return ErrSlotNotFound
	}
	slot.UpdatedAt = now
	return nil
}

// Delete removes a single content slot by ID. Its options must already be gone.
func (r *SQLiteSlotRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM content_slots WHERE id = ?", id)
	if err != nil {
		return storageErr(err, "deleting content slot %s", id)
	}
	if rowsAffected(result) == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// scanSlot scans one content slot row.
func scanSlot(row rowScanner) (*ContentSlot, error) {
	var s ContentSlot
	var createdAt, updatedAt string

	err := row.Scan(&s.ID, &s.ComponentType, &s.ViewID,
		&s.ColumnStart, &s.RowStart, &s.ColumnEnd, &s.RowEnd,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, storageErr(err, "scanning content slot")
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

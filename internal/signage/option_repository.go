package signage

import (
	"context"
)

// SQLiteOptionRepository implements OptionRepository using SQLite.
// Values are stored as JSON text.
type SQLiteOptionRepository struct {
	db DBTX
}

// NewOptionRepository creates a new SQLite-backed option repository.
func NewOptionRepository(db DBTX) *SQLiteOptionRepository {
	return &SQLiteOptionRepository{db: db}
}

// ListForSlot returns the persisted options of a slot. A slot without
// options yields an empty, non-nil map.
func (r *SQLiteOptionRepository) ListForSlot(ctx context.Context, slotID string) (OptionMap, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT key, value FROM content_slot_options WHERE slot_id = ? ORDER BY key", slotID)
	if err != nil {
		return nil, storageErr(err, "querying options for slot %s", slotID)
	}
	defer rows.Close()

	opts := OptionMap{}
	for rows.Next() {
		var key string
		var val OptionValue
		if err := rows.Scan(&key, &val); err != nil {
			return nil, storageErr(err, "scanning option row")
		}
		opts[key] = val
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "iterating option rows")
	}
	return opts, nil
}

// Create inserts one option.
func (r *SQLiteOptionRepository) Create(ctx context.Context, slotID, key string, value OptionValue) error {
	now := formatTime(nowUTC())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO content_slot_options (slot_id, key, value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		slotID, key, value, now, now)
	if err != nil {
		return storageErr(err, "inserting option %s/%s", slotID, key)
	}
	return nil
}

// Update replaces the value of an existing option.
func (r *SQLiteOptionRepository) Update(ctx context.Context, slotID, key string, value OptionValue) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE content_slot_options SET value = ?, updated_at = ?
		 WHERE slot_id = ? AND key = ?`,
		value, formatTime(nowUTC()), slotID, key)
	if err != nil {
		return storageErr(err, "updating option %s/%s", slotID, key)
	}
	if rowsAffected(result) == 0 {
		return ErrOptionNotFound
	}
	return nil
}

// Delete removes one option.
func (r *SQLiteOptionRepository) Delete(ctx context.Context, slotID, key string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM content_slot_options WHERE slot_id = ? AND key = ?", slotID, key)
	if err != nil {
		return storageErr(err, "deleting option %s/%s", slotID, key)
	}
	if rowsAffected(result) == 0 {
		return ErrOptionNotFound
	}
	return nil
}

// DeleteAllForSlot removes every option of a slot.
// Returns the number of rows deleted.
func (r *SQLiteOptionRepository) DeleteAllForSlot(ctx context.Context, slotID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM content_slot_options WHERE slot_id = ?", slotID)
	if err != nil {
		return 0, storageErr(err, "deleting options for slot %s", slotID)
	}
	return rowsAffected(result), nil
}

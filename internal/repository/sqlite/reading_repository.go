package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"meterease/internal/model"
)

// ReadingRepository implements repository.ReadingRepository for SQLite.
type ReadingRepository struct {
	db *DB
}

// NewReadingRepository creates a new SQLite reading repository.
func NewReadingRepository(db *DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Insert appends a reading and returns its row id.
func (r *ReadingRepository) Insert(ctx context.Context, reading *model.Reading) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO meter_readings (image_id, reading_value, reading_type, reading_date, original_image_path, processed_image_path)
		VALUES (?, ?, ?, ?, ?, ?)
	`, reading.ImageSetID, reading.Value, string(reading.Kind), reading.CapturedAt.UTC(), reading.OriginalPath, reading.ProcessedPath)
	if err != nil {
		return 0, fmt.Errorf("failed to insert reading: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read reading id: %w", err)
	}
	reading.ID = id
	return id, nil
}

// FindBySetAndKind returns the reading of one kind in an image set, or nil.
func (r *ReadingRepository) FindBySetAndKind(ctx context.Context, imageSetID string, kind model.ReadingKind) (*model.Reading, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var (
		reading model.Reading
		kindStr string
	)
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, image_id, reading_value, reading_type, reading_date, original_image_path, processed_image_path
		FROM meter_readings WHERE image_id = ? AND reading_type = ?
	`, imageSetID, string(kind)).Scan(&reading.ID, &reading.ImageSetID, &reading.Value, &kindStr,
		&reading.CapturedAt, &reading.OriginalPath, &reading.ProcessedPath)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}
	reading.Kind = model.ReadingKind(kindStr)
	return &reading, nil
}

// History lists image sets newest first.
func (r *ReadingRepository) History(ctx context.Context, limit, offset int) ([]model.HistoryEntry, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT c.image_id, c.reading_value, p.reading_value, cr.consumption_value, c.reading_date
		FROM meter_readings c
		LEFT JOIN meter_readings p ON p.image_id = c.image_id AND p.reading_type = 'previous'
		LEFT JOIN consumption_records cr ON cr.current_reading_id = c.id
		WHERE c.reading_type = 'current'
		ORDER BY c.reading_date DESC, c.id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := make([]model.HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry       model.HistoryEntry
			previous    sql.NullString
			consumption sql.NullFloat64
		)
		if err := rows.Scan(&entry.ImageSetID, &entry.Current, &previous, &consumption, &entry.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if previous.Valid {
			entry.Previous = &previous.String
		}
		if consumption.Valid {
			entry.Consumption = &consumption.Float64
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}

// DeleteSet removes every reading of an image set along with the
// consumption records that reference them.
func (r *ReadingRepository) DeleteSet(ctx context.Context, imageSetID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM consumption_records
		WHERE current_reading_id IN (SELECT id FROM meter_readings WHERE image_id = ?)
		   OR previous_reading_id IN (SELECT id FROM meter_readings WHERE image_id = ?)
	`, imageSetID, imageSetID); err != nil {
		return fmt.Errorf("failed to delete consumption records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meter_readings WHERE image_id = ?`, imageSetID); err != nil {
		return fmt.Errorf("failed to delete readings: %w", err)
	}
	return tx.Commit()
}

// Count returns the number of image sets with a current reading.
func (r *ReadingRepository) Count(ctx context.Context) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM meter_readings WHERE reading_type = 'current'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return count, nil
}

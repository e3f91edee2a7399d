package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"meterease/internal/model"
	"meterease/internal/repository"
)

// ConsumptionRepository implements repository.ConsumptionRepository for SQLite.
type ConsumptionRepository struct {
	db *DB
}

// NewConsumptionRepository creates a new SQLite consumption repository.
func NewConsumptionRepository(db *DB) *ConsumptionRepository {
	return &ConsumptionRepository{db: db}
}

// Insert stores a consumption record. Both readings must already exist.
func (r *ConsumptionRepository) Insert(ctx context.Context, record *model.ConsumptionRecord) (int64, error) {
	if record.CurrentReadingID == 0 || record.PreviousReadingID == 0 {
		return 0, repository.ErrMissingReadingRef
	}

	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO consumption_records (current_reading_id, previous_reading_id, consumption_value, calculation_date)
		VALUES (?, ?, ?, ?)
	`, record.CurrentReadingID, record.PreviousReadingID, record.Delta, record.ComputedAt.UTC())
	if err != nil {
		if constraintCode(err) == sqlite3.ErrConstraintForeignKey {
			return 0, fmt.Errorf("failed to insert consumption: %w", repository.ErrMissingReadingRef)
		}
		return 0, fmt.Errorf("failed to insert consumption: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read consumption id: %w", err)
	}
	record.ID = id
	return id, nil
}

// FindBySet returns the consumption record of an image set, or nil.
func (r *ConsumptionRepository) FindBySet(ctx context.Context, imageSetID string) (*model.ConsumptionRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var record model.ConsumptionRecord
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT cr.id, cr.current_reading_id, cr.previous_reading_id, cr.consumption_value, cr.calculation_date
		FROM consumption_records cr
		JOIN meter_readings c ON c.id = cr.current_reading_id
		WHERE c.image_id = ?
		ORDER BY cr.id DESC LIMIT 1
	`, imageSetID).Scan(&record.ID, &record.CurrentReadingID, &record.PreviousReadingID, &record.Delta, &record.ComputedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get consumption: %w", err)
	}
	return &record, nil
}

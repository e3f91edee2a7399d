package repository

import (
	"context"
	"errors"
	"fmt"

	"meterease/internal/model"
)

var (
	// ErrMissingReadingRef is returned when a consumption record points at a
	// reading that was never stored.
	ErrMissingReadingRef = errors.New("referenced reading does not exist")
	// ErrDuplicate is matched by every DuplicateError.
	ErrDuplicate = errors.New("duplicate record")
)

// DuplicateError reports a uniqueness violation on Field.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already registered", e.Field)
}

// Is makes errors.Is(err, ErrDuplicate) true for any DuplicateError.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// ReadingRepository defines the interface for meter reading operations.
// Readings are only removed when a predict request fails part way.
type ReadingRepository interface {
	// Create operations
	Insert(ctx context.Context, reading *model.Reading) (int64, error)

	// Read operations
	FindBySetAndKind(ctx context.Context, imageSetID string, kind model.ReadingKind) (*model.Reading, error)
	History(ctx context.Context, limit, offset int) ([]model.HistoryEntry, error)
	Count(ctx context.Context) (int, error)

	// Delete operations
	DeleteSet(ctx context.Context, imageSetID string) error
}

// ConsumptionRepository defines the interface for consumption record operations.
type ConsumptionRepository interface {
	Insert(ctx context.Context, record *model.ConsumptionRecord) (int64, error)
	FindBySet(ctx context.Context, imageSetID string) (*model.ConsumptionRecord, error)
}

// UserRepository defines the interface for account operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) (int64, error)
	GetByMobile(ctx context.Context, mobileNumber string) (*model.User, error)
	Delete(ctx context.Context, id int64) error
}

// TokenRepository stores issued refresh tokens.
type TokenRepository interface {
	StoreRefreshToken(ctx context.Context, token *model.RefreshToken) (int64, error)
	FindRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error)
}

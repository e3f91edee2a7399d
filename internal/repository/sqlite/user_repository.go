package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"meterease/internal/model"
	"meterease/internal/repository"
)

// UserRepository implements repository.UserRepository and
// repository.TokenRepository for SQLite.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. Uniqueness violations come back as
// *repository.DuplicateError.
func (r *UserRepository) Create(ctx context.Context, user *model.User) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	var serviceNumber sql.NullString
	if user.ServiceNumber != "" {
		serviceNumber = sql.NullString{String: user.ServiceNumber, Valid: true}
	}

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO users (name, mobile_number, service_number, hashed_password, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.Name, user.MobileNumber, serviceNumber, user.HashedPassword, user.IsActive, user.CreatedAt.UTC())
	if err != nil {
		if constraintCode(err) == sqlite3.ErrConstraintUnique {
			field := "mobile_number"
			if strings.Contains(err.Error(), "service_number") {
				field = "service_number"
			}
			return 0, &repository.DuplicateError{Field: field}
		}
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	return id, nil
}

// GetByMobile returns the user registered with the mobile number, or nil.
func (r *UserRepository) GetByMobile(ctx context.Context, mobileNumber string) (*model.User, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var (
		user          model.User
		serviceNumber sql.NullString
	)
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, name, mobile_number, service_number, hashed_password, is_active, created_at
		FROM users WHERE mobile_number = ?
	`, mobileNumber).Scan(&user.ID, &user.Name, &user.MobileNumber, &serviceNumber,
		&user.HashedPassword, &user.IsActive, &user.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.ServiceNumber = serviceNumber.String
	return &user, nil
}

// Delete removes a user. Their refresh tokens go with them.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// StoreRefreshToken persists an issued refresh token.
func (r *UserRepository) StoreRefreshToken(ctx context.Context, token *model.RefreshToken) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES (?, ?, ?)
	`, token.UserID, token.Token, token.ExpiresAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to store refresh token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read refresh token id: %w", err)
	}
	token.ID = id
	return id, nil
}

// FindRefreshToken looks up a stored refresh token, or nil.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var rt model.RefreshToken
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, user_id, token, expires_at FROM refresh_tokens WHERE token = ?
	`, token).Scan(&rt.ID, &rt.UserID, &rt.Token, &rt.ExpiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &rt, nil
}

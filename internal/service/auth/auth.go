// Package auth implements signup, login and bearer token verification.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"meterease/internal/config"
	"meterease/internal/logger"
	"meterease/internal/metrics"
	"meterease/internal/model"
	"meterease/internal/repository"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrAuthFailure is returned for both unknown users and wrong passwords.
	ErrAuthFailure = errors.New("incorrect mobile number or password")
	// ErrInvalidToken covers malformed, expired and wrongly typed tokens.
	ErrInvalidToken = errors.New("could not validate credentials")

	mobilePattern  = regexp.MustCompile(`^\d{10}$`)
	servicePattern = regexp.MustCompile(`^\d{12}$`)
)

// ValidationError rejects a signup before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SignupRequest is the input of Signup.
type SignupRequest struct {
	Name            string
	MobileNumber    string
	ServiceNumber   string
	Password        string
	ConfirmPassword string
}

// TokenPair is returned by Signup and Login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// Claims are the JWT claims of both token types.
type Claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// Service issues and verifies tokens for registered users.
type Service struct {
	users      repository.UserRepository
	tokens     repository.TokenRepository
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int
	metrics    *metrics.Metrics
	logger     *logger.Logger

	now     func() time.Time
	compare func(hash, password []byte) error

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService creates the auth service. m may be nil.
func NewService(cfg *config.Config, users repository.UserRepository, tokens repository.TokenRepository,
	m *metrics.Metrics, logger *logger.Logger) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		compare:    bcrypt.CompareHashAndPassword,
	}
}

// Signup validates the request, stores the user and issues a token pair.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*TokenPair, error) {
	if err := validateSignup(&req); err != nil {
		s.recordSignup("invalid")
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			s.recordSignup("invalid")
			return nil, &ValidationError{Field: "password", Message: "must be at most 72 bytes"}
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Name:           req.Name,
		MobileNumber:   req.MobileNumber,
		ServiceNumber:  req.ServiceNumber,
		HashedPassword: string(hash),
		IsActive:       true,
		CreatedAt:      s.now(),
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			s.recordSignup("duplicate")
			return nil, &ValidationError{Field: dup.Field, Message: "already registered"}
		}
		return nil, err
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		if delErr := s.users.Delete(context.WithoutCancel(ctx), user.ID); delErr != nil {
			s.logger.Error("Failed to remove user %d after signup error: %v", user.ID, delErr)
		}
		return nil, err
	}
	s.recordSignup("created")
	s.logger.Info("User %d signed up", user.ID)
	return pair, nil
}

// Login checks the credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, mobileNumber, password string) (*TokenPair, error) {
	user, err := s.users.GetByMobile(ctx, strings.TrimSpace(mobileNumber))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		// Same bcrypt work as a wrong password.
		_ = s.compare(s.placeholderHash(), []byte(password))
		s.recordLogin("failure")
		return nil, ErrAuthFailure
	}
	if err := s.compare([]byte(user.HashedPassword), []byte(password)); err != nil {
		s.recordLogin("failure")
		return nil, ErrAuthFailure
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	s.recordLogin("success")
	return pair, nil
}

// placeholderHash is a hash at the service cost that no password matches.
func (s *Service) placeholderHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.bcryptCost)
		if err != nil {
			s.logger.Error("Failed to build placeholder hash: %v", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Me returns the active user owning the access token.
func (s *Service) Me(ctx context.Context, accessToken string) (*model.User, error) {
	claims, err := s.Verify(accessToken, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByMobile(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// Verify parses a token and checks its signature, expiry and type.
func (s *Service) Verify(token, tokenType string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != tokenType || claims.Subject == "" {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrInvalidToken, claims.Type)
	}
	return claims, nil
}

func (s *Service) issue(ctx context.Context, user *model.User) (*TokenPair, error) {
	now := s.now()

	access, err := s.sign(user.MobileNumber, TokenTypeAccess, now, s.accessTTL)
	if err != nil {
		return nil, err
	}

	refreshExpiry := now.Add(s.refreshTTL)
	refresh, err := s.sign(user.MobileNumber, TokenTypeRefresh, now, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	if _, err := s.tokens.StoreRefreshToken(ctx, &model.RefreshToken{UserID: user.ID, Token: refresh, ExpiresAt: refreshExpiry}); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

func (s *Service) sign(subject, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func validateSignup(req *SignupRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	req.ServiceNumber = strings.TrimSpace(req.ServiceNumber)

	switch {
	case req.Name == "":
		return &ValidationError{Field: "name", Message: "is required"}
	case !mobilePattern.MatchString(req.MobileNumber):
		return &ValidationError{Field: "mobile_number", Message: "must be exactly 10 digits"}
	case req.ServiceNumber != "" && !servicePattern.MatchString(req.ServiceNumber):
		return &ValidationError{Field: "service_number", Message: "must be exactly 12 digits"}
	case req.Password == "":
		return &ValidationError{Field: "password", Message: "is required"}
	case req.Password != req.ConfirmPassword:
		return &ValidationError{Field: "confirm_password", Message: "passwords do not match"}
	}
	return nil
}

func (s *Service) recordSignup(result string) {
	if s.metrics != nil {
		s.metrics.RecordSignup(result)
	}
}

func (s *Service) recordLogin(result string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(result)
	}
}

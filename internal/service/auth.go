// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fxgate/fxgate/internal/auth"
	"github.com/fxgate/fxgate/internal/model"
	"github.com/fxgate/fxgate/internal/repository"
)

const maxKeyRetries = 3

// UserStore is the slice of the credential store the auth flows need.
type UserStore interface {
	GetPlanByID(ctx context.Context, id int64) (*model.Plan, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	ListRequestLogs(ctx context.Context, userID string, limit int) ([]model.RequestLog, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	VerifyDummy(password string)
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Issue(email string) (string, error)
	Verify(token string) (string, error)
}

// AuthService handles signup, login and bearer tokens.
type AuthService struct {
	store  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	logger *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(store UserStore, hasher PasswordHasher, tokens TokenIssuer, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: logger.With("component", "auth"),
	}
}

// Register creates a user on planID with the plan's initial credits and a
// fresh API key. An existing email is never modified.
func (s *AuthService) Register(ctx context.Context, email, password string, planID int64) (*model.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	plan, err := s.store.GetPlanByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:          email,
		HashedPassword: hashed,
		Credits:        plan.InitialCredits,
		PlanID:         plan.ID,
		IsActive:       true,
	}

	for attempt := 0; attempt < maxKeyRetries; attempt++ {
		user.APIKey, err = auth.GenerateAPIKey()
		if err != nil {
			return nil, err
		}

		err = s.store.CreateUser(ctx, user)
		switch {
		case err == nil:
			user.Plan = plan
			s.logger.Info("user registered", "user_id", user.ID, "plan", plan.Name)
			return user, nil
		case errors.Is(err, repository.ErrEmailExists):
			// Lost a race with a concurrent signup for the same address.
			return nil, ErrEmailExists
		case errors.Is(err, repository.ErrAPIKeyExists):
			continue
		default:
			return nil, fmt.Errorf("create user: %w", err)
		}
	}
	return nil, fmt.Errorf("create user: %w", err)
}

// Authenticate verifies credentials. Every failure is ErrInvalidCredentials;
// only the log says why.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		s.hasher.VerifyDummy(password)
		s.logFailure("malformed_email")
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.VerifyDummy(password)
			s.logFailure("unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.HashedPassword)
	if err != nil {
		s.logger.Error("stored password hash unreadable", "user_id", user.ID, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		s.logFailure("bad_password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.logFailure("inactive", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// IssueToken signs a bearer token for user.
func (s *AuthService) IssueToken(user *model.User) (string, error) {
	return s.tokens.Issue(user.Email)
}

// VerifyToken returns the email a token was issued for.
func (s *AuthService) VerifyToken(token string) (string, error) {
	email, err := s.tokens.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return email, nil
}

// CurrentUser resolves a bearer token to an active user with plan.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	email, err := s.VerifyToken(token)
	if err != nil {
		s.logFailure("bad_token", "error", err)
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logFailure("token_subject_missing")
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		s.logFailure("inactive", "user_id", user.ID)
		return nil, ErrInvalidToken
	}
	return user, nil
}

// RecentRequests returns the user's latest request logs, newest first.
func (s *AuthService) RecentRequests(ctx context.Context, userID string, limit int) ([]model.RequestLog, error) {
	logs, err := s.store.ListRequestLogs(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	if logs == nil {
		logs = []model.RequestLog{}
	}
	return logs, nil
}

func (s *AuthService) logFailure(reason string, attrs ...any) {
	s.logger.Warn("authentication failed", append([]any{"reason", reason}, attrs...)...)
}

// Package auth checks admin credentials and issues the bearer tokens that
// admin endpoints verify.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/memeboard/internal/model"
	"github.com/rcliao/memeboard/internal/store"
)

// ErrInvalidCredentials covers both unknown users and wrong passwords.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// AdminStore is the slice of the record store auth needs.
type AdminStore interface {
	CreateAdmin(ctx context.Context, a model.Admin) error
	GetAdmin(ctx context.Context, username string) (*model.Admin, error)
}

// Service handles admin login and provisioning.
type Service struct {
	admins AdminStore
	tokens *TokenManager
	params HashParams
}

// NewService returns a Service using the default hash parameters.
func NewService(admins AdminStore, tokens *TokenManager) *Service {
	return &Service{admins: admins, tokens: tokens, params: DefaultHashParams}
}

// Tokens returns the manager used to verify bearer tokens.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// CreateAdmin provisions an admin account.
func (s *Service) CreateAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return &model.ValidationError{Field: "username", Message: "username is required"}
	}
	if len(password) < 8 {
		return &model.ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	hash, err := HashPassword(password, s.params)
	if err != nil {
		return err
	}
	return s.admins.CreateAdmin(ctx, model.Admin{
		Username:     username,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	})
}

// EnsureAdmin creates the account unless the username is already taken,
// reporting whether it was created. An existing password is not changed.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	err := s.CreateAdmin(ctx, username, password)
	if errors.Is(err, store.ErrAdminExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Login verifies credentials and returns a signed token with its expiry.
func (s *Service) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	a, err := s.admins.GetAdmin(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("load admin: %w", err)
	}
	ok, err := VerifyPassword(password, a.PasswordHash)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.tokens.Issue(model.Principal{UserID: a.Username, Role: a.Role})
}

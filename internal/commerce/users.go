package commerce

import (
	"context"
	"errors"
	"slices"
	"strings"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/auth"
	"honnylove-backend/internal/store"
	"honnylove-backend/internal/users"
)

var roles = []string{auth.RoleCustomer, auth.RoleManager, auth.RoleAdmin}

type Session struct {
	User   users.User     `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

// Signup registers a customer and signs them in.
func (s *Service) Signup(ctx context.Context, nu users.NewUser) (*Session, error) {
	u, err := s.CreateUser(ctx, nu, auth.RoleCustomer)
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

// CreateUser stores a user with the given role.
func (s *Service) CreateUser(ctx context.Context, nu users.NewUser, role string) (*users.User, error) {
	nu.Email = strings.ToLower(strings.TrimSpace(nu.Email))
	nu.Name = strings.TrimSpace(nu.Name)
	if err := s.check(nu); err != nil {
		return nil, err
	}
	if !slices.Contains(roles, role) {
		return nil, apperr.Newf(apperr.CodeValidation, "unknown role %q", role)
	}
	hash, err := users.HashPassword(nu.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "create user")
	}
	u := &users.User{Email: nu.Email, Name: nu.Name, PasswordHash: hash, Role: role}
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertUser(ctx, u)
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "create user")
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, creds users.Credentials) (*Session, error) {
	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))
	if err := s.check(creds); err != nil {
		return nil, err
	}
	var u *users.User
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.GetUserByEmail(ctx, creds.Email)
		return err
	})
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, apperr.New(apperr.CodeUnauthorized, "invalid email or password")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err, "login")
	}
	if !u.CheckPassword(creds.Password) {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid email or password")
	}
	return s.session(u)
}

// Refresh exchanges a refresh token for a new pair carrying the user's
// current role.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.keys.Validate(refreshToken, auth.TokenRefresh)
	if err != nil {
		if errors.Is(err, auth.ErrWrongTokenType) {
			return nil, apperr.New(apperr.CodeUnauthorized, "refresh token required")
		}
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid refresh token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid refresh token")
	}
	var u *users.User
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.GetUser(ctx, userID)
		return err
	})
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, apperr.New(apperr.CodeUnauthorized, "invalid refresh token")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, err, "refresh")
	}
	return s.session(u)
}

func (s *Service) session(u *users.User) (*Session, error) {
	pair, err := s.keys.IssuePair(u.ID, u.Role)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "issue tokens")
	}
	return &Session{User: *u, Tokens: pair}, nil
}

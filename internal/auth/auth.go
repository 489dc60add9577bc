// Package auth handles account registration, login, and bearer-token
// sessions. Passwords are stored as bcrypt hashes inside the ledger;
// session state lives in a SessionStore so it can be kept in memory or in
// Redis without touching account data.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/commodex/paper-engine/internal/ledger"
	"github.com/commodex/paper-engine/internal/model"
)

var (
	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("auth: username already registered")

	// ErrInvalidUsername is returned when the username does not match the
	// allowed shape.
	ErrInvalidUsername = errors.New("auth: username must be 3-24 lowercase letters, digits, or underscores")

	// ErrWeakPassword is returned when the password is too short.
	ErrWeakPassword = errors.New("auth: password must be at least 6 characters")

	// ErrInvalidCredentials is returned on login when the username or
	// password is wrong. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrSessionNotFound is returned when a token is unknown or expired.
	ErrSessionNotFound = errors.New("auth: session not found")
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_]{3,24}$`)

// SessionStore tracks bearer tokens. Creating a session for a user revokes
// any previous session of the same user.
type SessionStore interface {
	Create(ctx context.Context, username string) (token string, err error)
	Resolve(ctx context.Context, token string) (username string, err error)
	Revoke(ctx context.Context, token string) error
}

// Service wires registration and login to the ledger and a session store.
// Every new account starts with the same virtual cash balance.
type Service struct {
	ledger          *ledger.Ledger
	sessions        SessionStore
	startingBalance decimal.Decimal
	now             func() time.Time
}

func NewService(l *ledger.Ledger, sessions SessionStore, startingBalance decimal.Decimal) *Service {
	return &Service{
		ledger:          l,
		sessions:        sessions,
		startingBalance: startingBalance,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a new account with the starting balance. The username
// is lower-cased before validation, so names differing only in case are
// the same account.
func (s *Service) Register(ctx context.Context, username, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernameRe.MatchString(username) {
		return ErrInvalidUsername
	}
	if len(password) < 6 {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	err = s.ledger.Update(ctx, func(table ledger.Table) error {
		if _, ok := table[username]; ok {
			return ErrUserExists
		}
		table[username] = &model.Account{
			Username:     username,
			PasswordHash: string(hash),
			Balance:      s.startingBalance,
			Holdings:     make(map[string]model.Holding),
			History:      []model.TradeRecord{},
			CreatedAt:    s.now(),
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("account registered", "user", username, "starting_balance", s.startingBalance)
	return nil
}

// Login verifies credentials and opens a session, returning the bearer
// token. Any previous session of the user is revoked.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	var hash string
	err := s.ledger.View(ctx, func(table ledger.Table) error {
		acct, ok := table[username]
		if !ok {
			return ErrInvalidCredentials
		}
		hash = acct.PasswordHash
		return nil
	})
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.sessions.Create(ctx, username)
	if err != nil {
		return "", err
	}
	slog.Info("user logged in", "user", username)
	return token, nil
}

// Logout revokes the session token. Revoking an unknown token is a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// Resolve maps a bearer token to its username.
func (s *Service) Resolve(ctx context.Context, token string) (string, error) {
	return s.sessions.Resolve(ctx, token)
}

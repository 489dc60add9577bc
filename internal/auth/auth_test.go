package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/commodex/paper-engine/internal/auth"
	"github.com/commodex/paper-engine/internal/ledger"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestService(t *testing.T, ttl time.Duration) (*auth.Service, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(ledger.NewMemoryStore())
	return auth.NewService(l, auth.NewMemorySessionStore(ttl), d(1000000)), l
}

func TestRegisterCreatesAccountWithStartingBalance(t *testing.T) {
	svc, l := newTestService(t, time.Hour)
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := l.View(ctx, func(table ledger.Table) error {
		acct, ok := table["alice"]
		if !ok {
			t.Fatal("account not created")
		}
		if !acct.Balance.Equal(d(1000000)) {
			t.Errorf("balance = %s, want 1000000", acct.Balance)
		}
		if len(acct.Holdings) != 0 {
			t.Errorf("holdings = %+v, want empty", acct.Holdings)
		}
		if len(acct.History) != 0 {
			t.Errorf("history = %+v, want empty", acct.History)
		}
		if acct.PasswordHash == "" || acct.PasswordHash == "hunter22" {
			t.Error("password not stored as a hash")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestRegisterNormalizesUsername(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	if err := svc.Register(ctx, "  Alice ", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Register(ctx, "alice", "hunter22"); !errors.Is(err, auth.ErrUserExists) {
		t.Errorf("err = %v, want ErrUserExists for case-insensitive duplicate", err)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"short username", "ab", "hunter22", auth.ErrInvalidUsername},
		{"illegal characters", "al ice!", "hunter22", auth.ErrInvalidUsername},
		{"short password", "alice", "12345", auth.ErrWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.Register(ctx, tc.username, tc.password); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLoginResolveLogout(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := svc.Login(ctx, "alice", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	username, err := svc.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if username != "alice" {
		t.Errorf("resolved user = %q, want alice", username)
	}

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Resolve(ctx, token); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Errorf("err after logout = %v, want ErrSessionNotFound", err)
	}
	// Logging out twice is fine.
	if err := svc.Logout(ctx, token); err != nil {
		t.Errorf("second Logout: %v", err)
	}
}

func TestLoginRejectsWrongCredentials(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "wrongpass"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody", "hunter22"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginEvictsPreviousSession(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	first, err := svc.Login(ctx, "alice", "hunter22")
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}
	second, err := svc.Login(ctx, "alice", "hunter22")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}

	if _, err := svc.Resolve(ctx, first); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Errorf("first token err = %v, want ErrSessionNotFound after relogin", err)
	}
	if user, err := svc.Resolve(ctx, second); err != nil || user != "alice" {
		t.Errorf("second token = (%q, %v), want alice", user, err)
	}
}

func TestSessionExpiry(t *testing.T) {
	svc, _ := newTestService(t, 10*time.Millisecond)
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := svc.Login(ctx, "alice", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := svc.Resolve(ctx, token); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Errorf("expired token err = %v, want ErrSessionNotFound", err)
	}
}

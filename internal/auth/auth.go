// Package auth verifies configured users and issues session tokens.
package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/hexselect/internal/core/observability"
)

// Anonymous is the user attached to requests when auth is disabled.
const Anonymous = "anonymous"

var (
	ErrMissingFields      = errors.New("please fill in all fields")
	ErrInvalidCredentials = errors.New("invalid user or password")
	ErrNoSession          = errors.New("missing or expired session")
)

type Config struct {
	Enabled    bool
	Users      map[string]string
	SessionTTL time.Duration
	MaxSession int
}

type Session struct {
	Token     string    `json:"token"`
	User      string    `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Authenticator struct {
	enabled  bool
	users    map[string]string
	ttl      time.Duration
	sessions *expirable.LRU[string, Session]
	logger   *slog.Logger
	now      func() time.Time
}

func New(cfg Config, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.MaxSession <= 0 {
		cfg.MaxSession = 10000
	}
	users := make(map[string]string, len(cfg.Users))
	for u, p := range cfg.Users {
		users[u] = p
	}
	return &Authenticator{
		enabled:  cfg.Enabled,
		users:    users,
		ttl:      cfg.SessionTTL,
		sessions: expirable.NewLRU[string, Session](cfg.MaxSession, nil, cfg.SessionTTL),
		logger:   logger,
		now:      time.Now,
	}
}

func (a *Authenticator) Enabled() bool { return a.enabled }

// Verify checks a user/password pair. Unknown users still pay for a
// comparison so timing does not reveal which names exist.
func (a *Authenticator) Verify(user, password string) error {
	if strings.TrimSpace(user) == "" || password == "" {
		return ErrMissingFields
	}
	want, known := a.users[user]
	if !known {
		want = "\x00" + password
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(password)) != 1 || !known {
		return ErrInvalidCredentials
	}
	return nil
}

func (a *Authenticator) Login(user, password string) (Session, error) {
	if err := a.Verify(user, password); err != nil {
		outcome := "invalid"
		if errors.Is(err, ErrMissingFields) {
			outcome = "missing_fields"
		}
		observability.IncAuthAttempt(outcome)
		a.logger.Info("login rejected", "user", user, "reason", outcome)
		return Session{}, err
	}
	s := Session{
		Token:     uuid.NewString(),
		User:      user,
		ExpiresAt: a.now().Add(a.ttl),
	}
	a.sessions.Add(s.Token, s)
	observability.IncAuthAttempt("ok")
	a.logger.Info("login", "user", user)
	return s, nil
}

func (a *Authenticator) Lookup(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	s, ok := a.sessions.Get(token)
	if !ok || !a.now().Before(s.ExpiresAt) {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (a *Authenticator) Logout(token string) bool {
	return a.sessions.Remove(token)
}

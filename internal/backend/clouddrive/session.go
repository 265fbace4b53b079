package clouddrive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ferry/internal/backend"
)

const (
	// tokenLifetime is how long a password-issued token is trusted before a
	// fresh login is forced, independent of anything the server reports.
	tokenLifetime = 24 * time.Hour

	// defaultRefreshLeeway renews the token this long before tokenLifetime
	// elapses so in-flight calls never ride an expiring credential.
	defaultRefreshLeeway = time.Hour
)

// Credential carries the authentication material for a CloudDrive2 server.
// APIToken takes precedence; when it is set the username and password are
// ignored and the session never attempts a login.
type Credential struct {
	APIToken string
	Username string
	Password string
}

func (c Credential) static() bool { return c.APIToken != "" }

// loginFunc exchanges the credential for a fresh bearer token.
type loginFunc func(ctx context.Context) (string, error)

// Session hands out a valid bearer token for each call, renewing
// password-issued tokens ahead of expiry. A static API token is returned
// as-is and never refreshed; if the server rejects it there is nothing the
// session can do, so Invalidate reports ErrAuthInvalid.
type Session struct {
	cred  Credential
	login loginFunc

	leeway time.Duration
	now    func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// SessionOption customises Session construction.
type SessionOption func(*Session)

// WithRefreshLeeway overrides how early tokens are renewed (used in tests).
func WithRefreshLeeway(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.leeway = d
		}
	}
}

// WithClock overrides the session's time source (used in tests).
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession builds a session for the given credential. login is only
// consulted for password credentials.
func NewSession(cred Credential, login loginFunc, opts ...SessionOption) (*Session, error) {
	if !cred.static() {
		if cred.Username == "" || cred.Password == "" {
			return nil, errors.New("clouddrive: credential requires an api token or a username and password")
		}
		if login == nil {
			return nil, errors.New("clouddrive: password credential requires a login function")
		}
	}
	s := &Session{
		cred:   cred,
		login:  login,
		leeway: defaultRefreshLeeway,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Token returns a bearer token expected to outlive the next call, logging in
// when no usable token is held.
func (s *Session) Token(ctx context.Context) (string, error) {
	if s.cred.static() {
		return s.cred.APIToken, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Before(s.expiresAt.Add(-s.leeway)) {
		return s.token, nil
	}
	return s.loginLocked(ctx)
}

// Invalidate discards the held token after the server rejected it and logs in
// again. For a static credential there is no recovery path, so the rejection
// is surfaced as ErrAuthInvalid.
func (s *Session) Invalidate(ctx context.Context) (string, error) {
	if s.cred.static() {
		return "", fmt.Errorf("%w: server rejected the configured api token", backend.ErrAuthInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
	return s.loginLocked(ctx)
}

func (s *Session) loginLocked(ctx context.Context) (string, error) {
	token, err := s.login(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("%w: login response carried no token", backend.ErrAuthExpired)
	}
	s.token = token
	s.expiresAt = s.now().Add(tokenLifetime)
	return token, nil
}

// Package auth is the authentication capability. It resolves login
// requests to identities through named providers and binds them to
// bearer-token sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/authstore"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"go.uber.org/zap"
)

var (
	ErrUnknownProvider    = errors.New("unknown auth provider")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrUserExists         = errors.New("username already exists")
)

// Credentials are what a login request carries
type Credentials struct {
	Username string
	Password string
}

// Provider turns credentials into an identity
type Provider interface {
	Name() string
	Authenticate(ctx context.Context, creds Credentials) (types.Identity, error)
}

// Service routes logins to providers and manages sessions
type Service struct {
	providers map[string]Provider
	sessions  authstore.Store
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a service over a session store
func NewService(sessions authstore.Store, ttl time.Duration, logger *zap.Logger, providers ...Provider) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		providers: make(map[string]Provider, len(providers)),
		sessions:  sessions,
		ttl:       ttl,
		logger:    logger.Named("auth"),
		now:       time.Now,
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}
	return s
}

// Providers returns the registered provider names
func (s *Service) Providers() []string {
	out := make([]string, 0, len(s.providers))
	for name := range s.providers {
		out = append(out, name)
	}
	return out
}

// Login authenticates and opens a session
func (s *Service) Login(ctx context.Context, provider string, creds Credentials) (authstore.Session, error) {
	p, ok := s.providers[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return authstore.Session{}, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}

	identity, err := p.Authenticate(ctx, creds)
	if err != nil {
		s.logger.Info("login rejected", zap.String("provider", p.Name()), zap.Error(err))
		return authstore.Session{}, err
	}
	identity.Provider = p.Name()

	sess := authstore.NewSession(identity, s.ttl, s.now())
	if err := s.sessions.Save(ctx, sess); err != nil {
		return authstore.Session{}, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("login",
		zap.String("provider", p.Name()),
		zap.String("user", string(identity.UserID)),
		zap.Bool("guest", identity.Guest))
	return sess, nil
}

// Resolve returns the identity behind a bearer token
func (s *Service) Resolve(ctx context.Context, token string) (types.Identity, error) {
	if token == "" {
		return types.Identity{}, ErrUnauthenticated
	}
	sess, err := s.sessions.Lookup(ctx, token)
	if errors.Is(err, authstore.ErrNotFound) {
		return types.Identity{}, ErrUnauthenticated
	}
	if err != nil {
		return types.Identity{}, err
	}
	return sess.Identity, nil
}

// Logout revokes a session
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

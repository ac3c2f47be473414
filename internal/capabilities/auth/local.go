package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/utils"
	"golang.org/x/crypto/bcrypt"
)

// UserKind is the persisted entity kind for local accounts
const UserKind = "user"

// accounts live under one system owner, keyed by lowercase username
var accountsOwner = persistence.Owner{ID: "_accounts"}

// User is a local account
type User struct {
	Username     string    `json:"username"`
	ID           id.UserID `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Local authenticates username/password accounts hashed with bcrypt
type Local struct {
	users *persistence.Gateway[User]
	cost  int
	// Register on first login instead of rejecting unknown usernames
	autoRegister bool
}

// LocalOption configures Local
type LocalOption func(*Local)

// WithCost sets the bcrypt cost
func WithCost(cost int) LocalOption {
	return func(l *Local) { l.cost = cost }
}

// WithAutoRegister creates unknown accounts on first login
func WithAutoRegister() LocalOption {
	return func(l *Local) { l.autoRegister = true }
}

// NewLocal creates the local provider over the shared persistence tiers
func NewLocal(tiers persistence.Tiers, opts ...LocalOption) *Local {
	l := &Local{
		users: persistence.NewFor(tiers, UserKind, func(u *User) string { return u.Username }),
		cost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Local) Name() string { return "local" }

// Load reads existing accounts
func (l *Local) Load(ctx context.Context) error {
	return l.users.Load(ctx, accountsOwner)
}

// Register creates an account
func (l *Local) Register(ctx context.Context, username, password string) (User, error) {
	if err := utils.ValidateUsername(username); err != nil {
		return User{}, err
	}
	if err := utils.ValidatePassword(password); err != nil {
		return User{}, err
	}
	key := strings.ToLower(username)
	if _, ok := l.users.Get(accountsOwner.ID, key); ok {
		return User{}, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return User{}, fmt.Errorf("password hashing failed: %w", err)
	}
	return l.users.Create(ctx, accountsOwner, User{
		Username:     key,
		ID:           id.NewUserID(),
		Name:         username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	})
}

// Authenticate checks a password
func (l *Local) Authenticate(ctx context.Context, creds Credentials) (types.Identity, error) {
	// validation errors are not revealed
	if utils.ValidateUsername(creds.Username) != nil || utils.ValidatePassword(creds.Password) != nil {
		return types.Identity{}, ErrInvalidCredentials
	}

	u, ok := l.users.Get(accountsOwner.ID, strings.ToLower(creds.Username))
	if !ok {
		if !l.autoRegister {
			return types.Identity{}, ErrInvalidCredentials
		}
		var err error
		if u, err = l.Register(ctx, creds.Username, creds.Password); err != nil {
			return types.Identity{}, err
		}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)); err != nil {
		return types.Identity{}, ErrInvalidCredentials
	}
	return types.Identity{UserID: u.ID, Name: u.Name}, nil
}

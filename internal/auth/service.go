// Package auth signs users in with email and password or with Google, and
// keeps the session in a signed cookie.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/badoux/checkmail"
	"golang.org/x/crypto/bcrypt"

	"financas/internal/core"
	"financas/internal/store"
)

const (
	MinPasswordLength = 6
	maxPasswordBytes  = 72
	defaultBcryptCost = 12
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = fmt.Errorf("password must have at least %d characters", MinPasswordLength)
	ErrPasswordTooLong    = fmt.Errorf("password must have at most %d bytes", maxPasswordBytes)
)

type Service struct {
	users      store.Users
	bcryptCost int
	now        func() time.Time
}

type ServiceOption func(*Service)

// WithBcryptCost lowers the hashing cost, mostly for tests.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) { s.bcryptCost = cost }
}

func NewService(users store.Users, opts ...ServiceOption) *Service {
	s := &Service{users: users, bcryptCost: defaultBcryptCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if err := checkmail.ValidateFormat(email); err != nil {
		return ErrInvalidEmail
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// SignUp registers a password account on the free plan.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (core.User, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := core.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		Plan:         core.PlanFree,
		Provider:     core.ProviderPassword,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	id, err := s.users.CreateUser(ctx, u)
	if errors.Is(err, store.ErrConflict) {
		return core.User{}, ErrEmailTaken
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	return u, nil
}

// SignIn checks a password. Unknown emails and wrong passwords look the same.
func (s *Service) SignIn(ctx context.Context, email, password string) (core.User, error) {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, fmt.Errorf("find user: %w", err)
	}
	if u.PasswordHash == "" {
		return core.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return core.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Profile is what a third-party identity provider tells us about the user.
type Profile struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// SignInWithProfile returns the account for profile's email, creating a free
// one when none exists. An existing account is never modified. Profiles
// without a verified email are refused, since they could claim any address.
func (s *Service) SignInWithProfile(ctx context.Context, provider string, p Profile) (core.User, bool, error) {
	if !p.EmailVerified {
		return core.User{}, false, ErrUnverifiedEmail
	}
	email := normalizeEmail(p.Email)
	if err := checkmail.ValidateFormat(email); err != nil {
		return core.User{}, false, ErrInvalidEmail
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return core.User{}, false, fmt.Errorf("find user: %w", err)
	}

	u = core.User{
		Email:     email,
		Name:      strings.TrimSpace(p.Name),
		Plan:      core.PlanFree,
		Provider:  provider,
		CreatedAt: s.now(),
	}
	id, err := s.users.CreateUser(ctx, u)
	if errors.Is(err, store.ErrConflict) {
		// Lost a race with a concurrent first sign-in.
		existing, gerr := s.users.GetUserByEmail(ctx, email)
		if gerr != nil {
			return core.User{}, false, fmt.Errorf("find user: %w", gerr)
		}
		return existing, false, nil
	}
	if err != nil {
		return core.User{}, false, fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	return u, true, nil
}

func (s *Service) User(ctx context.Context, id string) (core.User, error) {
	return s.users.GetUser(ctx, id)
}

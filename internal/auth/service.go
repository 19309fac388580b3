package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mrlokans/coursemarket/internal/config"
	"github.com/mrlokans/coursemarket/internal/database/users"
	"github.com/mrlokans/coursemarket/internal/entities"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("invalid role")
	ErrNameRequired       = errors.New("name is required")
	ErrEmailRequired      = errors.New("email is required")
	ErrEmailInvalid       = errors.New("invalid email format")
	ErrPasswordRequired   = errors.New("password is required")
	ErrAccountLocked      = errors.New("account is locked due to too many failed login attempts")
)

// UserRepository is the user storage the service depends on.
type UserRepository interface {
	CreateUser(ctx context.Context, user *entities.User) error
	GetUserByID(ctx context.Context, id uint) (*entities.User, error)
	GetUserByEmail(ctx context.Context, email string) (*entities.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListUsers(ctx context.Context) ([]entities.User, error)
	CountUsers(ctx context.Context, role entities.UserRole) (int64, error)
	RecordFailedLogin(ctx context.Context, user *entities.User, maxAttempts int, lockout time.Duration) error
	RecordSuccessfulLogin(ctx context.Context, user *entities.User) error
}

// Service handles sign-up, sign-in and account lookups, and publishes an
// Event for every session change.
type Service struct {
	notifier
	users  UserRepository
	config config.Auth
}

func NewService(repo UserRepository, cfg config.Auth) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.MaxLoginAttempts == 0 {
		cfg.MaxLoginAttempts = 5
	}
	if cfg.LockoutDuration == 0 {
		cfg.LockoutDuration = 30 * time.Minute
	}
	return &Service{users: repo, config: cfg}
}

// SignUp registers a regular user.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (*entities.User, error) {
	user, err := s.CreateUser(ctx, name, email, password, entities.UserRoleUser)
	if err != nil {
		return nil, err
	}
	s.publish(Event{Type: EventSignedUp, UserID: user.ID, Email: user.Email})
	return user, nil
}

// CreateUser creates an account with the given role. Used directly to
// bootstrap administrators.
func (s *Service) CreateUser(ctx context.Context, name, email, password string, role entities.UserRole) (*entities.User, error) {
	name = strings.TrimSpace(name)
	email = users.NormalizeEmail(email)

	if name == "" {
		return nil, ErrNameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	// RFC 5321 caps addresses at 254 characters.
	if len(email) > 254 || !emailPattern.MatchString(email) {
		return nil, ErrEmailInvalid
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// A concurrent sign-up can pass EmailExists and lose on the index.
		if errors.Is(err, users.ErrEmailTaken) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return user, nil
}

// SignIn checks credentials. Accounts are locked for LockoutDuration after
// MaxLoginAttempts consecutive failures.
func (s *Service) SignIn(ctx context.Context, email, password string) (*entities.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			s.publish(Event{Type: EventSignInFailed, Email: users.NormalizeEmail(email), Reason: "unknown account"})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user.IsLocked(time.Now()) {
		s.publish(Event{Type: EventSignInFailed, UserID: user.ID, Email: user.Email, Reason: "account locked"})
		return nil, ErrAccountLocked
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if ferr := s.users.RecordFailedLogin(ctx, user, s.config.MaxLoginAttempts, s.config.LockoutDuration); ferr != nil {
			return nil, fmt.Errorf("failed to record login failure: %w", ferr)
		}
		s.publish(Event{Type: EventSignInFailed, UserID: user.ID, Email: user.Email, Reason: "wrong password"})
		return nil, ErrInvalidCredentials
	}

	if err := s.users.RecordSuccessfulLogin(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	s.publish(Event{Type: EventSignedIn, UserID: user.ID, Email: user.Email})
	return user, nil
}

// SignOut announces the end of a session. The session itself is destroyed
// by the SessionManager.
func (s *Service) SignOut(session *Session) {
	if session == nil {
		return
	}
	s.publish(Event{Type: EventSignedOut, UserID: session.UserID, Email: session.Email})
}

// GetUserByID retrieves a user by their ID.
func (s *Service) GetUserByID(ctx context.Context, id uint) (*entities.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns every account for the admin dashboard.
func (s *Service) ListUsers(ctx context.Context) ([]entities.User, error) {
	return s.users.ListUsers(ctx)
}

// HasAdmin reports whether at least one administrator exists.
func (s *Service) HasAdmin(ctx context.Context) (bool, error) {
	n, err := s.users.CountUsers(ctx, entities.UserRoleAdmin)
	return n > 0, err
}

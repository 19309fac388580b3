package auth

import (
	"database/sql"
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"

	"github.com/mrlokans/coursemarket/internal/config"
	"github.com/mrlokans/coursemarket/internal/entities"
)

// Session data keys
const (
	sessionKeyUserID  = "user_id"
	sessionKeyName    = "name"
	sessionKeyEmail   = "email"
	sessionKeyRole    = "role"
	sessionKeyLoginAt = "login_at"
)

func init() {
	gob.Register(entities.UserRole(""))
	gob.Register(time.Time{})
}

// Session is the projection of the signed-in user kept in the session store.
type Session struct {
	UserID  uint              `json:"user_id"`
	Name    string            `json:"name"`
	Email   string            `json:"email"`
	Role    entities.UserRole `json:"role"`
	LoginAt time.Time         `json:"login_at"`
}

func (s Session) Actor() Actor {
	return Actor{UserID: s.UserID, Name: s.Name, Email: s.Email, Role: s.Role}
}

// SessionManager wraps scs.SessionManager with application-specific methods.
type SessionManager struct {
	*scs.SessionManager
}

// NewSessionManager creates a configured session manager. A non-nil sqlDB
// must be a sqlite handle; sessions are then persisted in its sessions
// table. With a nil sqlDB sessions live in memory.
func NewSessionManager(sqlDB *sql.DB, cfg config.Auth) (*SessionManager, error) {
	sm := scs.New()

	if sqlDB != nil {
		_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			expiry REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
		if err != nil {
			return nil, fmt.Errorf("failed to create sessions table: %w", err)
		}
		sm.Store = sqlite3store.New(sqlDB)
	} else {
		sm.Store = memstore.New()
	}

	lifetime := cfg.SessionLifetime
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	sm.Lifetime = lifetime
	sm.IdleTimeout = lifetime / 2

	sm.Cookie.Name = "session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm}, nil
}

// CreateSession stores the user projection after a successful sign-in.
func (sm *SessionManager) CreateSession(r *http.Request, user *entities.User) error {
	ctx := r.Context()
	// New token on privilege change.
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}

	sm.Put(ctx, sessionKeyUserID, int(user.ID))
	sm.Put(ctx, sessionKeyName, user.Name)
	sm.Put(ctx, sessionKeyEmail, user.Email)
	sm.Put(ctx, sessionKeyRole, user.Role)
	sm.Put(ctx, sessionKeyLoginAt, time.Now())
	return nil
}

// DestroySession removes all session data and invalidates the session.
func (sm *SessionManager) DestroySession(r *http.Request) error {
	return sm.Destroy(r.Context())
}

// CurrentSession returns the signed-in user's projection, if any.
func (sm *SessionManager) CurrentSession(r *http.Request) (*Session, bool) {
	ctx := r.Context()
	userID := sm.GetInt(ctx, sessionKeyUserID)
	if userID == 0 {
		return nil, false
	}

	role, _ := sm.Get(ctx, sessionKeyRole).(entities.UserRole)
	loginAt, _ := sm.Get(ctx, sessionKeyLoginAt).(time.Time)

	return &Session{
		UserID:  uint(userID),
		Name:    sm.GetString(ctx, sessionKeyName),
		Email:   sm.GetString(ctx, sessionKeyEmail),
		Role:    role,
		LoginAt: loginAt,
	}, true
}

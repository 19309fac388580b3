package auth

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/coursemarket/internal/entities"
)

const contextKeyActor = "auth_actor"

// UserLookup confirms that a session still belongs to an existing account.
type UserLookup interface {
	GetUserByID(ctx context.Context, id uint) (*entities.User, error)
}

// Middleware turns the session cookie into an Actor on the request.
type Middleware struct {
	users    UserLookup
	sessions *SessionManager
}

func NewMiddleware(users UserLookup, sessions *SessionManager) *Middleware {
	return &Middleware{users: users, sessions: sessions}
}

// Handler resolves the current actor, if any, and never rejects a request.
// Sessions of deleted accounts are destroyed. Role changes take effect on
// the next request because the role is read from the account, not the cookie.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := m.sessions.CurrentSession(c.Request)
		if !ok {
			c.Next()
			return
		}

		user, err := m.users.GetUserByID(c.Request.Context(), session.UserID)
		switch {
		case err == nil:
			setActor(c, ActorFromUser(user))
		case errors.Is(err, ErrUserNotFound):
			_ = m.sessions.DestroySession(c.Request)
		default:
			log.Printf("auth: failed to resolve session user %d: %v", session.UserID, err)
		}
		c.Next()
	}
}

func setActor(c *gin.Context, a Actor) {
	c.Set(contextKeyActor, a)
	c.Request = c.Request.WithContext(WithActor(c.Request.Context(), a))
}

// CurrentActor returns the signed-in actor of the request.
func CurrentActor(c *gin.Context) (Actor, bool) {
	if v, exists := c.Get(contextKeyActor); exists {
		if a, ok := v.(Actor); ok && !a.IsZero() {
			return a, true
		}
	}
	return Actor{}, false
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentActor(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// RequireRole rejects requests whose actor lacks every listed role: 401 when
// anonymous, 403 otherwise.
func RequireRole(roles ...entities.UserRole) gin.HandlerFunc {
	allowed := make(map[entities.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !allowed[actor.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

package auth

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/coursemarket/internal/config"
)

// AuthController serves the JSON sign-up, sign-in and session endpoints.
type AuthController struct {
	service     *Service
	sessions    *SessionManager
	rateLimiter *RateLimiter
}

func NewAuthController(service *Service, sessions *SessionManager, cfg config.Auth) *AuthController {
	return &AuthController{
		service:  service,
		sessions: sessions,
		rateLimiter: NewRateLimiter(RateLimitConfig{
			MaxAttempts:     cfg.MaxLoginAttempts,
			WindowDuration:  cfg.RateLimitWindow,
			LockoutDuration: cfg.LockoutDuration,
		}),
	}
}

// RegisterRoutes mounts the endpoints on group, usually /api/auth.
func (ac *AuthController) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/signup", ac.SignUp)
	group.POST("/login", ac.Login)
	group.POST("/logout", ac.Logout)
	group.GET("/session", ac.CurrentSession)
	group.GET("/csrf", ac.CSRFToken)
}

// Stop releases the rate limiter's cleanup goroutine.
func (ac *AuthController) Stop() {
	ac.rateLimiter.Stop()
}

type signUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignUp creates a regular account and signs it in.
func (ac *AuthController) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, email and password are required"})
		return
	}

	user, err := ac.service.SignUp(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, ErrNameRequired), errors.Is(err, ErrEmailRequired),
			errors.Is(err, ErrEmailInvalid), errors.Is(err, ErrPasswordRequired),
			errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Printf("auth: sign-up failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account, please try again"})
		}
		return
	}

	if err := ac.sessions.CreateSession(c.Request, user); err != nil {
		log.Printf("auth: failed to create session for user %d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "account created but sign-in failed"})
		return
	}

	session, _ := ac.sessions.CurrentSession(c.Request)
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// Login signs a user in after rate limit and credential checks.
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	ip := c.ClientIP()
	if allowed, retryAfter := ac.rateLimiter.Allow(ip, req.Email); !allowed {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts, try again later"})
		return
	}

	user, err := ac.service.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			ac.rateLimiter.RecordFailure(ip, req.Email)
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case errors.Is(err, ErrAccountLocked):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			log.Printf("auth: sign-in failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-in failed, please try again"})
		}
		return
	}
	ac.rateLimiter.RecordSuccess(ip, req.Email)

	if err := ac.sessions.CreateSession(c.Request, user); err != nil {
		log.Printf("auth: failed to create session for user %d: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-in failed, please try again"})
		return
	}

	session, _ := ac.sessions.CurrentSession(c.Request)
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// Logout destroys the session. Signing out twice is not an error.
func (ac *AuthController) Logout(c *gin.Context) {
	session, ok := ac.sessions.CurrentSession(c.Request)
	if err := ac.sessions.DestroySession(c.Request); err != nil {
		log.Printf("auth: failed to destroy session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-out failed, please try again"})
		return
	}
	if ok {
		ac.service.SignOut(session)
	}
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

// CurrentSession reports who is signed in. isAdmin mirrors the role.
func (ac *AuthController) CurrentSession(c *gin.Context) {
	actor, ok := CurrentActor(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	session, _ := ac.sessions.CurrentSession(c.Request)
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"is_admin":      actor.IsAdmin(),
		"user": gin.H{
			"id":    actor.UserID,
			"name":  actor.Name,
			"email": actor.Email,
			"role":  actor.Role,
		},
		"session": session,
	})
}

// CSRFToken hands out the token state-changing requests must carry.
func (ac *AuthController) CSRFToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"csrf_token": GetCSRFToken(c), "header": CSRFTokenHeader})
}

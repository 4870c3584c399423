package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	errBadCredentials = errors.New("invalid username or password")
	errLockedOut      = errors.New("too many failed login attempts")
)

const lockoutWindow = 15 * time.Minute

// Auth issues and checks opaque bearer tokens for the admin surface.
// Tokens live in memory only; a restart logs every operator out.
type Auth struct {
	username    string
	password    string
	ttl         time.Duration
	maxAttempts int
	log         *zap.Logger

	mu          sync.Mutex
	tokens      map[string]time.Time // token -> expiry
	failed      int
	lockedUntil time.Time
}

// NewAuth creates the token store for one operator account.
func NewAuth(username, password string, ttl time.Duration, maxAttempts int, log *zap.Logger) *Auth {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	a := &Auth{
		username:    username,
		password:    password,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		log:         log.Named("auth"),
		tokens:      make(map[string]time.Time),
	}
	if password == "changeme" {
		a.log.Warn("admin password is the default, change it before exposing the service")
	}
	return a
}

// Login checks credentials and issues a fresh token. Too many consecutive
// failures lock the account for a cooldown window.
func (a *Auth) Login(username, password string) (string, time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if now.Before(a.lockedUntil) {
		return "", time.Time{}, errLockedOut
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		a.failed++
		if a.failed >= a.maxAttempts {
			a.lockedUntil = now.Add(lockoutWindow)
			a.failed = 0
			a.log.Warn("admin login locked out", zap.Duration("window", lockoutWindow))
			return "", time.Time{}, errLockedOut
		}
		return "", time.Time{}, errBadCredentials
	}

	a.failed = 0
	token := uuid.NewString()
	expiry := now.Add(a.ttl)
	a.tokens[token] = expiry
	return token, expiry, nil
}

// Check reports whether the token is valid and unexpired.
func (a *Auth) Check(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	expiry, ok := a.tokens[token]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(a.tokens, token)
		return false
	}
	return true
}

// Logout invalidates a token. Unknown tokens are ignored.
func (a *Auth) Logout(token string) {
	a.mu.Lock()
	delete(a.tokens, token)
	a.mu.Unlock()
}

// Middleware guards a route group with bearer token authentication.
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" || !a.Check(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

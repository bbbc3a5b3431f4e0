package http

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bnema/convqueue/internal/adapter/http/ratelimit"
	"github.com/bnema/convqueue/internal/infrastructure/logger"
)

var (
	ErrAuthDisabled = errors.New("admin token not configured")
	ErrInvalidToken = errors.New("invalid token")
)

// TokenAuth checks bearer tokens against a bcrypt hash of the admin token.
type TokenAuth struct {
	hash []byte
}

// NewTokenAuth accepts the hash produced by HashToken. An empty hash disables
// every route that requires a token.
func NewTokenAuth(hash string) (*TokenAuth, error) {
	if hash == "" {
		return &TokenAuth{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("admin token hash: %w", err)
	}
	return &TokenAuth{hash: []byte(hash)}, nil
}

func HashToken(token string) (string, error) {
	if len(token) < 16 {
		return "", fmt.Errorf("token must be at least 16 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (a *TokenAuth) Enabled() bool {
	return len(a.hash) > 0
}

func (a *TokenAuth) Validate(token string) error {
	if !a.Enabled() {
		return ErrAuthDisabled
	}
	if token == "" || bcrypt.CompareHashAndPassword(a.hash, []byte(token)) != nil {
		return ErrInvalidToken
	}
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequireToken guards next with the admin bearer token. Clients that keep
// sending bad tokens are locked out by the limiter.
func RequireToken(auth *TokenAuth, limiter *ratelimit.FailureLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.Enabled() {
			writeError(w, http.StatusForbidden, ErrAuthDisabled.Error())
			return
		}

		client := clientID(r)
		if blocked, remaining := limiter.Blocked(client); blocked {
			tooManyAttempts(w, remaining)
			return
		}

		if err := auth.Validate(bearerToken(r)); err != nil {
			if lockout := limiter.RecordFailure(client); lockout > 0 {
				logger.Warn().Str("client", client).Dur("lockout", lockout).Msg("too many invalid tokens")
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="convqueue"`)
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		limiter.Reset(client)
		next(w, r)
	}
}

func tooManyAttempts(w http.ResponseWriter, remaining time.Duration) {
	secs := int(remaining.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "too many invalid tokens")
}

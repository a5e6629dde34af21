package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"comment-thread/internal/utils"
)

const tokenIssuer = "comment-thread-api"

// Claims identifies the thread session a token was issued for.
type Claims struct {
	SessionID uuid.UUID `json:"session_id"`
	Username  string    `json:"username"`
	jwt.RegisteredClaims
}

// UnprotectedRoutes defines routes that don't require JWT authentication.
// The websocket endpoint authenticates with its query token instead.
var UnprotectedRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
	"/ws":      true,
}

// TokenManager signs and validates session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// GenerateToken creates a token for the given session. It returns the
// signed token and its expiry.
func (tm *TokenManager) GenerateToken(sessionID uuid.UUID, username string) (string, time.Time, error) {
	now := time.Now()
	expirationTime := now.Add(tm.ttl)

	claims := &Claims{
		SessionID: sessionID,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   sessionID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expirationTime, nil
}

// ValidateToken parses tokenString and checks its signature and expiry.
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return tm.secret, nil
		},
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "invalid or expired token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == uuid.Nil {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "invalid token", errors.New("missing session claims"))
	}
	return claims, nil
}

func isUnprotected(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	if r.URL.Path == "/session" && r.Method == http.MethodPost {
		return true
	}
	return UnprotectedRoutes[r.URL.Path]
}

// AuthMiddleware validates the bearer token and stores its claims in the
// request context.
func (tm *TokenManager) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isUnprotected(r) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			WriteError(w, utils.NewAppError(utils.ErrUnauthorized, "authorization header required", nil))
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			WriteError(w, utils.NewAppError(utils.ErrUnauthorized, "invalid authorization format", nil))
			return
		}

		claims, err := tm.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			log.WithField("request_id", GetRequestID(r.Context())).Debugf("[auth] rejected token: %v", err)
			WriteError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetClaimsInContext(r.Context(), claims)))
	})
}

// Define a custom context key type to avoid collisions
type contextKey string

const (
	claimsKey    contextKey = "claims"
	requestIDKey contextKey = "request_id"
)

// SetClaimsInContext saves the token claims in the request context
func SetClaimsInContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaimsFromContext retrieves the token claims from the context
func GetClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

package auth

import (
	"botdesk/internal/config"
	"botdesk/internal/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const identityContextKey contextKey = "identity"

// ErrNoToken is returned when a request carries neither a bearer token nor a session cookie
var ErrNoToken = errors.New("no session token")

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller attached to the request context
type Identity struct {
	UserID string
	Email  string
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// sendError sends a standardized JSON error response
func sendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Code:      status,
		Message:   message,
		ErrorCode: "UNAUTHORIZED",
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(errResp)
}

// TokenManager issues and verifies session tokens
type TokenManager struct {
	secret       []byte
	expiration   time.Duration
	cookieName   string
	cookieSecure bool
	now          func() time.Time
}

func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	expiration := cfg.TokenExpiration
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "token"
	}
	return &TokenManager{
		secret:       cfg.JWTSecret,
		expiration:   expiration,
		cookieName:   cookieName,
		cookieSecure: cfg.CookieSecure,
		now:          time.Now,
	}
}

func (tm *TokenManager) GenerateToken(userID, email string) (string, error) {
	now := tm.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

// TokenFromRequest reads the bearer token, then the session cookie
func (tm *TokenManager) TokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", errors.New("invalid authorization header format")
		}
		return parts[1], nil
	}

	cookie, err := r.Cookie(tm.cookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoToken
	}
	return cookie.Value, nil
}

// Middleware rejects requests without a valid session and attaches the Identity otherwise
func (tm *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := tm.TokenFromRequest(r)
		if err != nil {
			sendError(w, http.StatusUnauthorized, "Unauthorized", err)
			return
		}

		claims, err := tm.ValidateToken(token)
		if err != nil {
			logger.Log.WithError(err).Debug("Rejected session token")
			sendError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		ctx := WithIdentity(r.Context(), Identity{UserID: claims.UserID, Email: claims.Email})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionCookie wraps a token in the http-only session cookie
func (tm *TokenManager) SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     tm.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tm.expiration.Seconds()),
		HttpOnly: true,
		Secure:   tm.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearedSessionCookie expires the session cookie
func (tm *TokenManager) ClearedSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     tm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   tm.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the caller set by Middleware
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

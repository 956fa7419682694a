package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const SessionCookieName = "echoes_session"

var (
	sessionSecret       []byte
	sessionCookieSecure bool
)

// ConfigureSessions sets the key used to sign session cookies and whether they are Secure.
func ConfigureSessions(secret string, secure bool) {
	sessionSecret = []byte(secret)
	sessionCookieSecure = secure
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SignSessionToken wraps an opaque session token in an HS256 JWT so tampered cookies are rejected before Redis is hit.
func SignSessionToken(token string) (string, error) {
	if len(sessionSecret) == 0 {
		return "", errors.New("session secret not configured")
	}
	now := time.Now()
	claims := sessionClaims{
		SessionID: token,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionDuration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sessionSecret)
}

// ParseSessionCookie verifies a cookie value and returns the session token inside it.
func ParseSessionCookie(value string) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (interface{}, error) {
		return sessionSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}
	if claims.SessionID == "" {
		return "", errors.New("invalid session cookie: missing sid")
	}
	return claims.SessionID, nil
}

// SetSessionCookie writes the signed session cookie for token.
func SetSessionCookie(w http.ResponseWriter, token string) error {
	signed, err := SignSessionToken(token)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   sessionCookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearSessionCookie expires the session cookie in the browser.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sessionCookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionFromRequest resolves the request's cookie to a live session.
// It returns the raw token too so callers can invalidate it.
func SessionFromRequest(ctx context.Context, r *http.Request) (*Session, string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, "", false
	}
	token, err := ParseSessionCookie(cookie.Value)
	if err != nil {
		return nil, "", false
	}
	sess, ok, err := ValidateSession(ctx, token)
	if err != nil || !ok {
		return nil, token, false
	}
	return sess, token, true
}

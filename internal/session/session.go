// Package session implements the signed-cookie session carrier. A session is
// a single signed claim (the user id) held entirely by the client; the server
// keeps no session records.
package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the fixed name of the session cookie.
const CookieName = "reqforge_session"

// MaxAge is the client-side lifetime of a session cookie.
const MaxAge = 30 * 24 * time.Hour

// Codec signs and reads session cookies.
type Codec struct {
	secret []byte
	secure bool
}

// NewCodec constructs a Codec. secure controls the cookie Secure attribute
// and should be true in production.
func NewCodec(secret string, secure bool) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret is required")
	}
	return &Codec{secret: []byte(secret), secure: secure}, nil
}

// Issue creates a signed session token for the given user id.
func (c *Codec) Issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(MaxAge)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Read extracts the user id from the request's session cookie.
//
// Read has exactly two outcomes: (userID, true) or ("", false). A missing,
// malformed, expired or tampered cookie is "no session", never an error; a
// corrupt cookie must not be able to fail a page load.
func (c *Codec) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return c.decode(cookie.Value)
}

func (c *Codec) decode(value string) (string, bool) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", false
	}
	return claims.Subject, true
}

// Cookie wraps a signed token in the session cookie with its fixed attributes.
func (c *Codec) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(MaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Destroy returns a cookie that overwrites the client's session with an
// already-expired value, so the client discards it on the next request.
func (c *Codec) Destroy() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Package auth issues and verifies signed session cookies.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoSecret     = errors.New("session secret not configured")
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpired      = errors.New("session expired")
)

// Claims is the signed session payload.
type Claims struct {
	OpenID    string `json:"sub"`
	SessionID string `json:"sid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Sessions signs tokens with HMAC-SHA256 and carries them in a cookie.
type Sessions struct {
	secret     []byte
	CookieName string
	TTL        time.Duration
	Secure     bool
	now        func() time.Time
}

// NewSessions returns a Sessions. An empty secret disables issuing and makes
// every request anonymous.
func NewSessions(secret, cookieName string, ttl time.Duration) *Sessions {
	if cookieName == "" {
		cookieName = "bsdetect_session"
	}
	if ttl <= 0 {
		ttl = 365 * 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), CookieName: cookieName, TTL: ttl, now: time.Now}
}

// Issue creates a token for openID.
func (s *Sessions) Issue(openID string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrNoSecret
	}
	if openID == "" {
		return "", errors.New("session subject is empty")
	}
	now := s.now()
	payload, err := json.Marshal(Claims{
		OpenID:    openID,
		SessionID: uuid.NewString(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.TTL).Unix(),
	})
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	return body + "." + s.sign(body), nil
}

// Verify checks the signature and expiry of token.
func (s *Sessions) Verify(token string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrNoSecret
	}
	body, sig, ok := strings.Cut(token, ".")
	if !ok || body == "" || sig == "" {
		return nil, ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(body))) {
		return nil, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil || c.OpenID == "" {
		return nil, ErrInvalidToken
	}
	if s.now().Unix() >= c.ExpiresAt {
		return nil, ErrExpired
	}
	return &c, nil
}

func (s *Sessions) sign(body string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// FromRequest returns the verified claims of the request's session cookie.
func (s *Sessions) FromRequest(r *http.Request) (*Claims, error) {
	c, err := r.Cookie(s.CookieName)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.Verify(c.Value)
}

// Cookie wraps token in a session cookie.
func (s *Sessions) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     s.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.TTL / time.Second),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the session cookie.
func (s *Sessions) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

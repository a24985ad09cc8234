package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const SessionCookieName = "selfoss_session"

var errSessionExpired = errors.New("session expired")

// SessionAuthProvider authenticates browser clients with a signed,
// expiring cookie. An absent, tampered or expired cookie on a protected
// route yields 403 so clients can distinguish a stale session from a bad
// request and prompt for a fresh login.
type SessionAuthProvider struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionAuthProvider(secret string, ttl time.Duration) *SessionAuthProvider {
	return &SessionAuthProvider{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func (p *SessionAuthProvider) Authenticate(next http.Handler, required bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			if required {
				http.Error(w, "session expired", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		userID, err := p.verify(cookie.Value, time.Now())
		if err != nil {
			if required {
				http.Error(w, "session expired", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey_, User{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Issue returns a session cookie for the given user, signed and stamped
// with its expiry so verification needs no server-side session state.
func (p *SessionAuthProvider) Issue(userID string, now time.Time) *http.Cookie {
	expires := now.Add(p.ttl)
	payload := fmt.Sprintf("%s:%d", userID, expires.Unix())

	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    payload + ":" + p.sign(payload),
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Expire returns a cookie that clears the session on the client.
func (p *SessionAuthProvider) Expire() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (p *SessionAuthProvider) verify(value string, now time.Time) (string, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return "", errors.New("malformed session cookie")
	}

	payload := parts[0] + ":" + parts[1]
	if !hmac.Equal([]byte(p.sign(payload)), []byte(parts[2])) {
		return "", errors.New("invalid session signature")
	}

	expiresUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse session expiry: %w", err)
	}
	if now.After(time.Unix(expiresUnix, 0)) {
		return "", errSessionExpired
	}

	return parts[0], nil
}

func (p *SessionAuthProvider) sign(payload string) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

package auth

import (
	"context"
	"net/http"
	"strings"
)

// KeyAuthProvider authenticates requests with a static bearer token,
// intended for machine clients that cannot hold a browser session.
type KeyAuthProvider struct {
	keyToUserID map[string]string
}

func NewKeyAuthProvider(keyToUserID map[string]string) *KeyAuthProvider {
	return &KeyAuthProvider{
		keyToUserID: keyToUserID,
	}
}

func (p *KeyAuthProvider) Authenticate(next http.Handler, required bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")

		if !strings.HasPrefix(authHeader, "Bearer ") {
			if required {
				http.Error(w, "invalid authorization header", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		authToken := strings.TrimPrefix(authHeader, "Bearer ")
		userID, ok := p.keyToUserID[authToken]
		if !ok {
			if required {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey_, User{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

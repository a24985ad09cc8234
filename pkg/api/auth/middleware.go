package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type UserContextKey string

const UserContextKey_ UserContextKey = "user"

// Provider authenticates incoming requests.
// On success it must store the user in the request context and call
// next.ServeHTTP; on failure it either writes an http error (required) or
// falls through anonymously (optional).
type Provider interface {
	Authenticate(next http.Handler, required bool) http.Handler
}

type User struct {
	UserID string
}

type AuthConfig struct {
	Provider Provider
	Required bool
}

type RouteAuthConfig map[string]AuthConfig

// RouteAuthMiddleware applies a per-route auth provider, falling back to a
// default provider for routes without an explicit entry.
type RouteAuthMiddleware struct {
	routes      RouteAuthConfig
	defaultAuth *AuthConfig
}

func UserFromContext(ctx context.Context) (User, error) {
	user, ok := ctx.Value(UserContextKey_).(User)
	if !ok {
		return User{}, errors.New("user not found in context")
	}
	return user, nil
}

func NewRouteAuthMiddleware(defaultAuth *AuthConfig) *RouteAuthMiddleware {
	return &RouteAuthMiddleware{
		routes:      make(RouteAuthConfig),
		defaultAuth: defaultAuth,
	}
}

func (m *RouteAuthMiddleware) SetRouteAuth(pattern string, config AuthConfig) *RouteAuthMiddleware {
	m.routes[pattern] = config
	return m
}

func (m *RouteAuthMiddleware) SetRouteAuthProvider(pattern string, provider Provider, required bool) *RouteAuthMiddleware {
	m.routes[pattern] = AuthConfig{
		Provider: provider,
		Required: required,
	}
	return m
}

func (m *RouteAuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for OPTIONS (CORS preflight) requests
		if r.Method == "OPTIONS" {
			next.ServeHTTP(w, r)
			return
		}

		authConfig := m.getAuthConfigForRoute(r.URL.Path, r.Method)

		if authConfig == nil || authConfig.Provider == nil {
			// No auth configured, continue without authentication
			next.ServeHTTP(w, r)
			return
		}

		authMiddleware := authConfig.Provider.Authenticate(next, authConfig.Required)
		authMiddleware.ServeHTTP(w, r)
	})
}

func (m *RouteAuthMiddleware) getAuthConfigForRoute(path, method string) *AuthConfig {
	routeKey := method + " " + path
	if config, exists := m.routes[routeKey]; exists {
		return &config
	}

	for pattern, config := range m.routes {
		if m.matchesPattern(pattern, routeKey) {
			return &config
		}
	}

	return m.defaultAuth
}

func (m *RouteAuthMiddleware) matchesPattern(pattern, route string) bool {
	if strings.Contains(pattern, "{") {
		// Handle path parameters like /sources/{id}
		patternParts := strings.Split(pattern, "/")
		routeParts := strings.Split(route, "/")

		if len(patternParts) != len(routeParts) {
			return false
		}

		for i, part := range patternParts {
			if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
				continue
			}
			if part != routeParts[i] {
				return false
			}
		}
		return true
	}

	return pattern == route
}

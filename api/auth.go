/*
auth.go - JWT principal middleware

PURPOSE:
  The identity provider is an external collaborator; this middleware only
  verifies an HS256 bearer token and reads the claims the core needs: the
  subject (acting employee id) and the roles claim (employee/manager/hr).
  Handlers pull the Principal from the request context.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/leave-engine/leave"
)

// Principal identifies the authenticated actor.
type Principal struct {
	EmployeeID string
	Roles      []leave.Role
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type authClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

func authenticate(token, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &authClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}

	p := Principal{EmployeeID: claims.Subject}
	for _, r := range claims.Roles {
		p.Roles = append(p.Roles, leave.Role(r))
	}
	return p, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware enforces bearer auth on /api except the health check.
func newAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, "/api") || req.URL.Path == "/api/health" {
				next.ServeHTTP(w, req)
				return
			}

			token, ok := bearerToken(req.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
				return
			}
			principal, err := authenticate(token, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

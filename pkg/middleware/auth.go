package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/chris/wallet-ledger/pkg/access"
	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/handlers/render"
	"github.com/golang-jwt/jwt/v5"
)

const defaultRole = "user"

// Authenticate validates HS256 bearer tokens and runs the request as the actor
// named by the "sub" and "role" claims.
func Authenticate(secret []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			actor, err := parseActor(r.Header.Get("Authorization"), secret)
			if err != nil {
				noteActor(r.Context(), audit.Actor{})
				render.Error(w, err)
				return
			}
			noteActor(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(audit.WithActor(r.Context(), actor)))
		}
		return http.HandlerFunc(fn)
	}
}

func parseActor(header string, secret []byte) (audit.Actor, error) {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return audit.Actor{}, apperr.Unauthorized("missing bearer token")
	}
	tokenStr := strings.TrimSpace(header[len("Bearer "):])

	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return audit.Actor{}, apperr.Unauthorized("invalid token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return audit.Actor{}, apperr.Unauthorized("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return audit.Actor{}, apperr.Unauthorized("token has no subject")
	}
	role, _ := claims["role"].(string)
	if role == "" {
		role = defaultRole
	}
	return audit.Actor{ID: sub, Role: role}, nil
}

// Authorize rejects callers whose role may not perform action on resource.
func Authorize(authorizer access.Authorizer, action, resource string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			actor := audit.ActorFromContext(r.Context())
			if err := authorizer.CheckPermission(r.Context(), actor.Role, action, resource); err != nil {
				render.Error(w, err)
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"deskaudit/internal/domain"
)

// AuthMiddleware validates an HS256 JWT Bearer token and stores the
// resolved actor in the request context, where both service-level
// authorization checks and the audit logger read it. Returns 401 when the
// token is missing or invalid.
//
// Expected claims: sub (actor id), email, admin (bool), and optionally
// actor_type (defaults to "user").
func AuthMiddleware(jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				unauthorized(w)
				return
			}

			tokenStr := strings.TrimPrefix(auth, "Bearer ")
			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
				return jwtSecret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				unauthorized(w)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				unauthorized(w)
				return
			}
			sub, _ := claims["sub"].(string)
			if sub == "" {
				unauthorized(w)
				return
			}

			actor := domain.Actor{ID: sub, Type: domain.ActorTypeUser}
			if email, ok := claims["email"].(string); ok {
				actor.Email = email
			}
			if actorType, ok := claims["actor_type"].(string); ok && actorType != "" {
				actor.Type = actorType
			}
			if admin, ok := claims["admin"].(bool); ok {
				actor.IsAdmin = admin
			}

			ctx := domain.WithActor(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    401,
		"message": "unauthorized: provide a valid JWT Bearer token",
	})
}

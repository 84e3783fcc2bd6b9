package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const actorIDKey contextKey = "actor_id"

// IdentityMiddleware resolves the acting volunteer for each request. All
// moderation operations attribute authorship, locks, and reviews to an actor,
// so the id must be present before a handler runs.
//
// Two sources are accepted, in order:
//  1. Authorization: Bearer <jwt> — an HS256 token whose subject claim is the
//     actor id, verified against the configured secret.
//  2. X-Actor-Id header — a plain volunteer handle for deployments that run
//     without an identity provider.
type IdentityMiddleware struct {
	jwtSecret []byte
}

// NewIdentityMiddleware creates a new identity middleware. An empty secret
// disables JWT verification and leaves only the header source.
func NewIdentityMiddleware(jwtSecret string) *IdentityMiddleware {
	return &IdentityMiddleware{jwtSecret: []byte(jwtSecret)}
}

// Resolve extracts the actor id and adds it to the request context.
// Requests without a resolvable identity are rejected with 401.
func (m *IdentityMiddleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := m.actorFromToken(r)
		if !ok {
			actorID = strings.TrimSpace(r.Header.Get("X-Actor-Id"))
		}

		if actorID == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing actor identity: provide a Bearer token or X-Actor-Id header")
			return
		}

		ctx := context.WithValue(r.Context(), actorIDKey, actorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *IdentityMiddleware) actorFromToken(r *http.Request) (string, bool) {
	if len(m.jwtSecret) == 0 {
		return "", false
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", false
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", false
	}
	return subject, true
}

// ActorID retrieves the resolved actor id from the request context.
func ActorID(r *http.Request) (string, bool) {
	actorID, ok := r.Context().Value(actorIDKey).(string)
	return actorID, ok
}

// Helper function to respond with JSON error
func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

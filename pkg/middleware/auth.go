package middleware

import (
	"context"
	"net/http"
	"strings"

	"labreserve/pkg/logger"
	"labreserve/pkg/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

const IdentityKey contextKey = "identity"

// Authenticate validates the Bearer token issued by the identity provider
// and stores the asserted identity in the request context. The admin
// capability comes from the token's signed role claim; the service never
// consults a client-controlled flag.
func Authenticate(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				rejectUnauthorized(w, "missing bearer token")
				return
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				log.Warn("Token validation failed",
					"request_id", RequestID(r.Context()),
					"error", err,
				)
				rejectUnauthorized(w, "invalid token")
				return
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				rejectUnauthorized(w, "invalid claims")
				return
			}

			identity := identityFromClaims(claims)
			if identity.UserID == "" {
				rejectUnauthorized(w, "token has no subject")
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates administrator-only routes on the verified role claim.
func RequireAdmin(log *logger.Logger) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || !identity.Admin {
				log.Warn("Admin route denied",
					"request_id", RequestID(r.Context()),
					"user_id", identity.UserID,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"administrator role required"}`))
				return
			}
			next(w, r, ps)
		}
	}
}

func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(model.Identity)
	return identity, ok
}

func identityFromClaims(claims jwt.MapClaims) model.Identity {
	identity := model.Identity{}
	if sub, ok := claims["sub"].(string); ok {
		identity.UserID = sub
	}
	if name, ok := claims["name"].(string); ok {
		identity.DisplayName = name
	}
	if picture, ok := claims["picture"].(string); ok {
		identity.PhotoURL = picture
	}
	if role, ok := claims["role"].(string); ok {
		identity.Admin = role == "admin"
	}
	return identity
}

func rejectUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

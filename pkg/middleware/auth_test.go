package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"labreserve/pkg/logger"
	"labreserve/pkg/model"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func authChain(capture *model.Identity) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := IdentityFromContext(r.Context()); ok {
			*capture = identity
		}
		w.WriteHeader(http.StatusOK)
	})
	return Authenticate(testSecret, logger.Discard())(next)
}

func TestAuthenticate_ValidToken(t *testing.T) {
	var identity model.Identity
	handler := authChain(&identity)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":     "user-1",
		"name":    "Dana",
		"picture": "https://example.com/dana.png",
		"role":    "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/mine", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if identity.UserID != "user-1" {
		t.Errorf("expected subject to become the user id, got %q", identity.UserID)
	}
	if identity.DisplayName != "Dana" {
		t.Errorf("unexpected display name %q", identity.DisplayName)
	}
	if !identity.Admin {
		t.Error("admin role claim should set the admin capability")
	}
}

func TestAuthenticate_NonAdminRole(t *testing.T) {
	var identity model.Identity
	handler := authChain(&identity)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":  "user-2",
		"name": "Riley",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/mine", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if identity.Admin {
		t.Error("a token without the role claim must not be admin")
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	var identity model.Identity
	handler := authChain(&identity)

	tests := []struct {
		name  string
		token string
	}{
		{"missing header", ""},
		{"garbage token", "not-a-jwt"},
		{
			"wrong signing key",
			signToken(t, "other-secret", jwt.MapClaims{
				"sub": "user-1",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			"expired token",
			signToken(t, testSecret, jwt.MapClaims{
				"sub": "user-1",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
		},
		{
			"no subject",
			signToken(t, testSecret, jwt.MapClaims{
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/mine", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

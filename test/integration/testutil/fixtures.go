package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MintToken issues an HS256 token the way the identity provider would.
// The server must run with AUTH_TOKEN_SECRET equal to the given secret.
func MintToken(t *testing.T, secret, userID, displayName string, admin bool) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  userID,
		"name": displayName,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	if admin {
		claims["role"] = "admin"
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

// EquipmentPayload is a valid create request body.
func EquipmentPayload(name string) map[string]any {
	return map[string]any{
		"name":        name,
		"description": "Integration test equipment",
	}
}

// BookingPayload is a valid submit request body for the given window.
func BookingPayload(equipmentID string, start, end time.Time) map[string]any {
	return map[string]any{
		"equipment_id": equipmentID,
		"start_date":   start.Format(time.RFC3339),
		"end_date":     end.Format(time.RFC3339),
	}
}

// FutureWindow returns a booking window starting the given number of
// hours from now.
func FutureWindow(startInHours, durationHours int) (time.Time, time.Time) {
	start := time.Now().Add(time.Duration(startInHours) * time.Hour).UTC().Truncate(time.Second)
	return start, start.Add(time.Duration(durationHours) * time.Hour)
}

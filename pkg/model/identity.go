package model

// Identity is the authenticated caller as asserted by the identity
// provider's signed token. Admin reflects a verified role claim, never a
// client-side toggle.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Admin       bool   `json:"admin"`
}

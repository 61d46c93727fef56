package types

import "time"

// AccessToken is the bearer credential returned by the key server.
// Lifetime: until explicitly replaced or until the server rejects it.
type AccessToken struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the token carries an expiry in the past
func (t *AccessToken) Expired(now time.Time) bool {
	if t == nil || t.Value == "" {
		return true
	}
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

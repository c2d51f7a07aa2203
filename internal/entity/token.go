package entity

import "time"

// Token records an issued refresh token by its hash. A refresh token is only
// honored while its hash is present here and not expired.
type Token struct {
	Hash      string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Package token keeps the provider access token obtained through OAuth.
package token

import (
	"context"
	"time"
)

// MaxAge is when a token is reported as old. Upstox tokens stay valid
// until revoked, so age is informational and never blocks a scan.
const MaxAge = 24 * time.Hour

type Token struct {
	Provider    string
	AccessToken string
	SavedAt     time.Time
}

// Status is the token state reported by the health endpoint.
type Status struct {
	Valid    bool     `json:"valid"`
	AgeHours *float64 `json:"ageHours"`
	SavedAt  string   `json:"savedAt,omitempty"`
	Message  string   `json:"message"`
}

type Repository interface {
	Save(ctx context.Context, t Token) error
	// Latest returns the most recently saved token, or nil if none exists.
	Latest(ctx context.Context, provider string) (*Token, error)
}

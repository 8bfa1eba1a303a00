package models

import "time"

type StravaAccount struct {
	ID             int        `json:"id"`
	UserID         int        `json:"user_id"`
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	TokenExpiresAt time.Time  `json:"token_expires_at"`
	ProfileURL     *string    `json:"profile_url,omitempty"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
}

func (a *StravaAccount) TokenExpired(now time.Time) bool {
	return !a.TokenExpiresAt.After(now)
}

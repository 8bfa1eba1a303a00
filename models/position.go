package models

import "time"

// PositionSnapshot is one recorded rank of a participant. Rows are only
// appended; ChallengeID becomes nil once the challenge is deleted.
type PositionSnapshot struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	ChallengeID *int      `json:"challenge_id,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
	Rank        int       `json:"rank"`

	Challenge *Challenge `json:"challenge,omitempty"`
}

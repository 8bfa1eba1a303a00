package models

import "time"

type ChallengeParticipant struct {
	ID          int       `json:"id"`
	ChallengeID int       `json:"challenge_id"`
	UserID      int       `json:"user_id"`
	TrackID     *int      `json:"track_id,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`

	User *User `json:"user,omitempty"`
}

package models

import "time"

type Comment struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	ChallengeID int       `json:"challenge_id"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`

	AuthorLogin string `json:"author_login,omitempty"`
}

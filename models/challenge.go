package models

import "time"

// ChallengeType хранится в БД строкой; "talaka" - групповой челлендж.
type ChallengeType string

const (
	ChallengeGroup      ChallengeType = "talaka"
	ChallengeIndividual ChallengeType = "individual"
)

func (t ChallengeType) Valid() bool {
	return t == ChallengeGroup || t == ChallengeIndividual
}

type Challenge struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	Description    *string       `json:"description,omitempty"`
	TargetDistance int           `json:"target_distance"`
	StartDate      time.Time     `json:"start_date"`
	EndDate        time.Time     `json:"end_date"`
	CreatorID      int           `json:"creator_id"`
	Type           ChallengeType `json:"type"`
	IsPrivate      bool          `json:"is_private"`
	IsClosed       bool          `json:"is_closed"`
	CreatedAt      time.Time     `json:"created_at"`

	Creator          *User `json:"creator,omitempty"`
	ParticipantCount int   `json:"participant_count"`
}

// Window returns the challenge period with the end date counted as a full day.
func (c *Challenge) Window() DateRange {
	from := time.Date(c.StartDate.Year(), c.StartDate.Month(), c.StartDate.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(c.EndDate.Year(), c.EndDate.Month(), c.EndDate.Day(), 0, 0, 0, 0, time.UTC)
	return DateRange{From: from, To: end.AddDate(0, 0, 1)}
}

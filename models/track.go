package models

import (
	"strings"
	"time"
)

// ActivityType is the normalized kind of a recorded activity.
type ActivityType string

const (
	ActivityRide        ActivityType = "ride"
	ActivityVirtualRide ActivityType = "virtualride"
	ActivityUnspecified ActivityType = ""
	ActivityOther       ActivityType = "other"
)

// ParseActivityType maps the raw stored type onto ActivityType. Providers
// report "Ride"/"VirtualRide", uploads leave the column NULL.
func ParseActivityType(raw *string) ActivityType {
	if raw == nil {
		return ActivityUnspecified
	}
	switch strings.ToLower(strings.TrimSpace(*raw)) {
	case "":
		return ActivityUnspecified
	case string(ActivityRide):
		return ActivityRide
	case string(ActivityVirtualRide):
		return ActivityVirtualRide
	default:
		return ActivityOther
	}
}

type Track struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	Filename       string    `json:"filename"`
	Name           *string   `json:"name,omitempty"`
	Distance       float64   `json:"distance"`
	Duration       int64     `json:"duration_seconds"`
	MovingDuration int64     `json:"moving_duration_seconds"`
	ElevationGain  int       `json:"elevation_gain"`
	RecordTime     time.Time `json:"record_time"`
	UploadTime     time.Time `json:"upload_time"`
	Type           *string   `json:"type,omitempty"`
	ArchiveKey     *string   `json:"-"`
	ArchiveURL     *string   `json:"archive_url,omitempty"`

	OwnerLogin string `json:"owner_login,omitempty"`
}

func (t *Track) Activity() ActivityType {
	return ParseActivityType(t.Type)
}

// DisplayName falls back to the external filename when no name was given.
func (t *Track) DisplayName() string {
	if t.Name != nil && *t.Name != "" {
		return *t.Name
	}
	return t.Filename
}

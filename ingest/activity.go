// Package ingest turns raw activity sources into normalized tracks.
package ingest

import (
	"math"
	"strconv"
	"time"

	"github.com/Dosada05/ride-challenges/models"
	"github.com/Dosada05/ride-challenges/strava"
)

// Activity is a normalized activity ready to be stored as a track.
type Activity struct {
	ExternalID     string
	Name           *string
	Distance       float64 // km
	Duration       time.Duration
	MovingDuration time.Duration
	ElevationGain  int // metres
	StartTime      time.Time
	Type           *string
}

func (a *Activity) Track(userID int) *models.Track {
	return &models.Track{
		UserID:         userID,
		Filename:       a.ExternalID,
		Name:           a.Name,
		Distance:       a.Distance,
		Duration:       int64(a.Duration / time.Second),
		MovingDuration: int64(a.MovingDuration / time.Second),
		ElevationGain:  a.ElevationGain,
		RecordTime:     a.StartTime.UTC(),
		Type:           a.Type,
	}
}

// FromStrava keys the activity by its Strava id so repeated syncs find it.
func FromStrava(a strava.Activity) Activity {
	out := Activity{
		ExternalID:     strconv.FormatInt(a.ID, 10),
		Distance:       roundKm(a.Distance),
		Duration:       time.Duration(a.ElapsedTime) * time.Second,
		MovingDuration: time.Duration(a.MovingTime) * time.Second,
		ElevationGain:  int(math.Round(a.TotalElevationGain)),
		StartTime:      a.StartDate,
	}
	if a.Name != "" {
		name := a.Name
		out.Name = &name
	}
	typ := a.Type
	if typ == "" {
		typ = a.SportType
	}
	if typ != "" {
		out.Type = &typ
	}
	return out
}

// roundKm converts metres to kilometres with two decimals.
func roundKm(metres float64) float64 {
	if metres < 0 {
		return 0
	}
	return math.Round(metres/10) / 100
}

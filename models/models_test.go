package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseActivityType(t *testing.T) {
	s := func(v string) *string { return &v }

	assert.Equal(t, ActivityUnspecified, ParseActivityType(nil))
	assert.Equal(t, ActivityUnspecified, ParseActivityType(s("  ")))
	assert.Equal(t, ActivityRide, ParseActivityType(s("Ride")))
	assert.Equal(t, ActivityRide, ParseActivityType(s(" ride ")))
	assert.Equal(t, ActivityVirtualRide, ParseActivityType(s("VirtualRide")))
	assert.Equal(t, ActivityOther, ParseActivityType(s("Run")))
	assert.Equal(t, ActivityOther, ParseActivityType(s("EBikeRide")))
}

func TestChallengeWindowIncludesEndDay(t *testing.T) {
	c := &Challenge{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	w := c.Window()

	assert.True(t, w.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2024, 1, 10, 23, 59, 59, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)))
}

func TestDayRange(t *testing.T) {
	r := DayRange(time.Date(2024, 3, 5, 15, 4, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), r.From)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), r.To)
}

func TestTrackDisplayName(t *testing.T) {
	name := "Morning loop"
	assert.Equal(t, "12345", (&Track{Filename: "12345"}).DisplayName())
	assert.Equal(t, name, (&Track{Filename: "12345", Name: &name}).DisplayName())
}

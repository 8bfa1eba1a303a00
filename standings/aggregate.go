package standings

import (
	"math"
	"sort"

	"github.com/Dosada05/ride-challenges/models"
)

// UserAggregate is computed from eligible tracks only.
type UserAggregate struct {
	UserID        int     `json:"user_id"`
	TotalDistance float64 `json:"total_distance"`
	RideDays      int     `json:"ride_days"`
	StreakCount   int     `json:"streak_count"`
	LongestStreak int     `json:"longest_streak"`
	TrackCount    int     `json:"track_count"`
	TotalDuration int64   `json:"total_duration_seconds"`
	ElevationGain int     `json:"elevation_gain"`
}

func Aggregate(userID int, tracks []*models.Track) UserAggregate {
	eligible := FilterEligible(tracks)
	agg := UserAggregate{UserID: userID, TrackCount: len(eligible)}
	for _, t := range eligible {
		agg.TotalDistance += t.Distance
		agg.TotalDuration += t.Duration
		agg.ElevationGain += t.ElevationGain
	}
	days := RideDays(eligible)
	agg.RideDays = len(days)
	agg.StreakCount, agg.LongestStreak = Streaks(days)
	return agg
}

type DailyTotal struct {
	Date       string  `json:"date"`
	Distance   float64 `json:"distance"`
	Cumulative float64 `json:"cumulative"`
}

// DailyTotals sums distance per record day, ascending, with a running total.
func DailyTotals(tracks []*models.Track) []DailyTotal {
	sums := make(map[Day]float64)
	for _, t := range tracks {
		sums[DayOf(t.RecordTime)] += t.Distance
	}
	days := make([]Day, 0, len(sums))
	for d := range sums {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Time().Before(days[j].Time()) })

	out := make([]DailyTotal, 0, len(days))
	var running float64
	for _, d := range days {
		running += sums[d]
		out = append(out, DailyTotal{
			Date:       d.Time().Format("2006-01-02"),
			Distance:   math.Round(sums[d]*100) / 100,
			Cumulative: math.Round(running*100) / 100,
		})
	}
	return out
}

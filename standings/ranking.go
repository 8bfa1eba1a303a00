package standings

import (
	"sort"
	"time"

	"github.com/Dosada05/ride-challenges/models"
)

type Standing struct {
	UserID        int     `json:"user_id"`
	TotalDistance float64 `json:"total_distance"`
	Rank          int     `json:"rank"`
}

// Rank orders participants by total distance descending, ties going to the
// lower user id, and assigns ranks 1..N without gaps.
func Rank(totals map[int]float64) []Standing {
	out := make([]Standing, 0, len(totals))
	for userID, total := range totals {
		out = append(out, Standing{UserID: userID, TotalDistance: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDistance != out[j].TotalDistance {
			return out[i].TotalDistance > out[j].TotalDistance
		}
		return out[i].UserID < out[j].UserID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Totals sums the distance of every track that falls into the window.
// Participants without tracks are present with zero.
func Totals(participants []int, tracks map[int][]*models.Track, window models.DateRange) map[int]float64 {
	totals := make(map[int]float64, len(participants))
	for _, userID := range participants {
		var sum float64
		for _, t := range FilterEligible(tracks[userID]) {
			if window.Contains(t.RecordTime) {
				sum += t.Distance
			}
		}
		totals[userID] = sum
	}
	return totals
}

// ChangedStandings returns the standings whose rank differs from the last
// recorded one, or which have no recorded rank yet.
func ChangedStandings(current []Standing, latest map[int]int) []Standing {
	changed := make([]Standing, 0)
	for _, s := range current {
		prev, ok := latest[s.UserID]
		if !ok || prev != s.Rank {
			changed = append(changed, s)
		}
	}
	return changed
}

// NextTimestamp keeps snapshot times strictly increasing per participant.
// Times are cut to microseconds, the precision recorded_at is stored with.
func NextTimestamp(now time.Time, last *time.Time) time.Time {
	now = now.Truncate(time.Microsecond)
	if last == nil {
		return now
	}
	prev := last.Truncate(time.Microsecond)
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

// RankDelta is positive when the rank number grew, i.e. the participant
// fell back.
type RankDelta struct {
	Delta     int       `json:"delta"`
	Direction Direction `json:"direction"`
}

var NoChange = RankDelta{Direction: DirectionNone}

// DailyDelta compares the latest snapshot of the day with the latest one
// before it.
func DailyDelta(today, before *models.PositionSnapshot) RankDelta {
	if today == nil || before == nil {
		return NoChange
	}
	d := today.Rank - before.Rank
	switch {
	case d > 0:
		return RankDelta{Delta: d, Direction: DirectionDown}
	case d < 0:
		return RankDelta{Delta: d, Direction: DirectionUp}
	default:
		return NoChange
	}
}

// RankBounds returns the best (lowest) and worst rank among snapshots.
func RankBounds(snapshots []*models.PositionSnapshot) (minRank, maxRank int) {
	for i, s := range snapshots {
		if i == 0 || s.Rank < minRank {
			minRank = s.Rank
		}
		if i == 0 || s.Rank > maxRank {
			maxRank = s.Rank
		}
	}
	return minRank, maxRank
}

package standings

import (
	"sort"
	"time"

	"github.com/Dosada05/ride-challenges/models"
)

// Day is a calendar date at UTC midnight.
type Day time.Time

func DayOf(t time.Time) Day {
	y, m, d := t.UTC().Date()
	return Day(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func (d Day) Time() time.Time { return time.Time(d) }

func (d Day) next() Day { return Day(time.Time(d).AddDate(0, 0, 1)) }

// RideDays returns the distinct days with at least one track, ascending.
func RideDays(tracks []*models.Track) []Day {
	seen := make(map[Day]struct{}, len(tracks))
	days := make([]Day, 0, len(tracks))
	for _, t := range tracks {
		d := DayOf(t.RecordTime)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return time.Time(days[i]).Before(time.Time(days[j])) })
	return days
}

// Streaks walks sorted distinct days. count is the number of runs of at
// least two consecutive days; longest also counts single-day runs.
func Streaks(days []Day) (count, longest int) {
	if len(days) == 0 {
		return 0, 0
	}
	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if days[i-1].next() == days[i] {
			run++
		} else {
			if run >= 2 {
				count++
			}
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	if run >= 2 {
		count++
	}
	return count, longest
}

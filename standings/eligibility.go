// Package standings holds the pure computations behind challenge rankings
// and user statistics. Nothing here touches storage.
package standings

import "github.com/Dosada05/ride-challenges/models"

var eligibleTypes = map[models.ActivityType]struct{}{
	models.ActivityRide:        {},
	models.ActivityVirtualRide: {},
	models.ActivityUnspecified: {},
}

// IsEligible reports whether tracks of the given type count toward
// rankings and statistics.
func IsEligible(t models.ActivityType) bool {
	_, ok := eligibleTypes[t]
	return ok
}

// EligibleTypes returns the whitelist, unspecified last.
func EligibleTypes() []models.ActivityType {
	return []models.ActivityType{models.ActivityRide, models.ActivityVirtualRide, models.ActivityUnspecified}
}

// FilterEligible keeps tracks whose type is whitelisted and whose distance
// is not negative. The input order is preserved.
func FilterEligible(tracks []*models.Track) []*models.Track {
	out := make([]*models.Track, 0, len(tracks))
	for _, t := range tracks {
		if t == nil || t.Distance < 0 {
			continue
		}
		if IsEligible(t.Activity()) {
			out = append(out, t)
		}
	}
	return out
}

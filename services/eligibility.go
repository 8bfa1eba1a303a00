package services

import (
	"context"
	"fmt"

	"github.com/Dosada05/ride-challenges/models"
	"github.com/Dosada05/ride-challenges/repositories"
	"github.com/Dosada05/ride-challenges/standings"
)

// EligibilityFilter is the only way the ranking and statistics code reads
// tracks, so both always agree on what counts.
type EligibilityFilter interface {
	EligibleTracks(ctx context.Context, exec repositories.SQLExecutor, userID int, window *models.DateRange) ([]*models.Track, error)
	// EligibleTracksByUser groups eligible tracks by owner. A nil userIDs
	// slice means every user.
	EligibleTracksByUser(ctx context.Context, exec repositories.SQLExecutor, userIDs []int, window *models.DateRange) (map[int][]*models.Track, error)
}

type eligibilityFilter struct {
	trackRepo repositories.TrackRepository
}

func NewEligibilityFilter(trackRepo repositories.TrackRepository) EligibilityFilter {
	return &eligibilityFilter{trackRepo: trackRepo}
}

func (f *eligibilityFilter) EligibleTracks(ctx context.Context, exec repositories.SQLExecutor, userID int, window *models.DateRange) ([]*models.Track, error) {
	tracks, err := f.trackRepo.List(ctx, exec, repositories.TrackFilter{UserIDs: []int{userID}, Window: window})
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks of user %d: %w", userID, err)
	}
	return standings.FilterEligible(tracks), nil
}

func (f *eligibilityFilter) EligibleTracksByUser(ctx context.Context, exec repositories.SQLExecutor, userIDs []int, window *models.DateRange) (map[int][]*models.Track, error) {
	grouped := make(map[int][]*models.Track, len(userIDs))
	if userIDs != nil && len(userIDs) == 0 {
		return grouped, nil
	}
	tracks, err := f.trackRepo.List(ctx, exec, repositories.TrackFilter{UserIDs: userIDs, Window: window})
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}
	for _, t := range standings.FilterEligible(tracks) {
		grouped[t.UserID] = append(grouped[t.UserID], t)
	}
	return grouped, nil
}

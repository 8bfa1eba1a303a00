package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Dosada05/ride-challenges/cache"
	"github.com/Dosada05/ride-challenges/metrics"
	"github.com/Dosada05/ride-challenges/repositories"
	"github.com/Dosada05/ride-challenges/standings"
)

type MetricStat struct {
	Value      float64 `json:"value"`
	Percentile int     `json:"percentile"`
}

type UserStatistics struct {
	UserID         int        `json:"user_id"`
	TotalDistance  MetricStat `json:"total_distance"`
	RideDays       MetricStat `json:"ride_days"`
	StreakCount    MetricStat `json:"streak_count"`
	LongestStreak  MetricStat `json:"longest_streak"`
	TrackCount     MetricStat `json:"track_count"`
	TotalDuration  int64      `json:"total_duration_seconds"`
	ElevationGain  int        `json:"elevation_gain"`
	PopulationSize int        `json:"population_size"`
}

type SiteStatistics struct {
	Users         int     `json:"users"`
	Tracks        int     `json:"tracks"`
	Challenges    int     `json:"challenges"`
	TotalDistance float64 `json:"total_distance"`
}

type StatisticsService interface {
	UserStatistics(ctx context.Context, userID int) (*UserStatistics, error)
	SiteStatistics(ctx context.Context) (*SiteStatistics, error)
}

type statisticsService struct {
	userRepo      repositories.UserRepository
	trackRepo     repositories.TrackRepository
	challengeRepo repositories.ChallengeRepository
	eligibility   EligibilityFilter
	cache         cache.Store
	cacheTTL      time.Duration
	recorder      metrics.Recorder
	logger        *zap.Logger
}

func NewStatisticsService(
	userRepo repositories.UserRepository,
	trackRepo repositories.TrackRepository,
	challengeRepo repositories.ChallengeRepository,
	eligibility EligibilityFilter,
	store cache.Store,
	cacheTTL time.Duration,
	recorder metrics.Recorder,
	logger *zap.Logger,
) StatisticsService {
	return &statisticsService{
		userRepo:      userRepo,
		trackRepo:     trackRepo,
		challengeRepo: challengeRepo,
		eligibility:   eligibility,
		cache:         store,
		cacheTTL:      cacheTTL,
		recorder:      recorder,
		logger:        logger,
	}
}

func (s *statisticsService) UserStatistics(ctx context.Context, userID int) (*UserStatistics, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	population, err := s.population(ctx)
	if err != nil {
		return nil, err
	}

	target, ok := population[userID]
	if !ok {
		target = standings.Aggregate(userID, nil)
		population[userID] = target
	}

	n := len(population)
	distance := make([]float64, 0, n)
	rideDays := make([]float64, 0, n)
	longest := make([]float64, 0, n)
	tracks := make([]float64, 0, n)
	for _, agg := range population {
		distance = append(distance, agg.TotalDistance)
		rideDays = append(rideDays, float64(agg.RideDays))
		longest = append(longest, float64(agg.LongestStreak))
		tracks = append(tracks, float64(agg.TrackCount))
	}

	return &UserStatistics{
		UserID: userID,
		TotalDistance: MetricStat{
			Value:      round2(target.TotalDistance),
			Percentile: standings.Percentile(target.TotalDistance, distance, standings.StrictlyBelow),
		},
		RideDays: MetricStat{
			Value:      float64(target.RideDays),
			Percentile: standings.Percentile(float64(target.RideDays), rideDays, standings.StrictlyBelow),
		},
		// The streak count carries the "ride streak" percentile, which is
		// taken non-strictly over longest streaks.
		StreakCount: MetricStat{
			Value:      float64(target.StreakCount),
			Percentile: standings.Percentile(float64(target.LongestStreak), longest, standings.AtOrBelow),
		},
		LongestStreak: MetricStat{
			Value:      float64(target.LongestStreak),
			Percentile: standings.Percentile(float64(target.LongestStreak), longest, standings.StrictlyBelow),
		},
		TrackCount: MetricStat{
			Value:      float64(target.TrackCount),
			Percentile: standings.Percentile(float64(target.TrackCount), tracks, standings.StrictlyBelow),
		},
		TotalDuration:  target.TotalDuration,
		ElevationGain:  target.ElevationGain,
		PopulationSize: n,
	}, nil
}

// population returns aggregates for every user owning at least one track,
// cached under the current track change marker.
func (s *statisticsService) population(ctx context.Context) (map[int]standings.UserAggregate, error) {
	marker, err := s.trackRepo.ChangeMarker(ctx)
	if err != nil {
		return nil, err
	}
	key := "stats:population:" + marker

	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("statistics cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var cached []standings.UserAggregate
		if err := json.Unmarshal(data, &cached); err == nil {
			s.recorder.ObserveStatsCache(true)
			out := make(map[int]standings.UserAggregate, len(cached))
			for _, agg := range cached {
				out[agg.UserID] = agg
			}
			return out, nil
		}
		s.logger.Warn("discarding undecodable statistics cache entry", zap.String("key", key))
	}
	s.recorder.ObserveStatsCache(false)

	owners, err := s.trackRepo.ListOwnerIDs(ctx, nil)
	if err != nil {
		return nil, err
	}
	tracks, err := s.eligibility.EligibleTracksByUser(ctx, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	out := make(map[int]standings.UserAggregate, len(owners))
	list := make([]standings.UserAggregate, 0, len(owners))
	for _, id := range owners {
		agg := standings.Aggregate(id, tracks[id])
		out[id] = agg
		list = append(list, agg)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })

	if data, err := json.Marshal(list); err == nil {
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
			s.logger.Warn("statistics cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return out, nil
}

func (s *statisticsService) SiteStatistics(ctx context.Context) (*SiteStatistics, error) {
	users, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	tracks, err := s.trackRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	challenges, err := s.challengeRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	population, err := s.population(ctx)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, agg := range population {
		total += agg.TotalDistance
	}
	return &SiteStatistics{
		Users:         users,
		Tracks:        tracks,
		Challenges:    challenges,
		TotalDistance: round2(total),
	}, nil
}

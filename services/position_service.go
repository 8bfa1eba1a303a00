package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/ride-challenges/metrics"
	"github.com/Dosada05/ride-challenges/models"
	"github.com/Dosada05/ride-challenges/repositories"
	"github.com/Dosada05/ride-challenges/standings"
)

type RankedParticipant struct {
	UserID        int                 `json:"user_id"`
	Login         string              `json:"login"`
	TotalDistance float64             `json:"total_distance"`
	TotalDuration int64               `json:"total_duration_seconds"`
	Rank          int                 `json:"rank"`
	RankDelta     standings.RankDelta `json:"rank_delta"`
}

type PositionHistory struct {
	UserID      int                        `json:"user_id"`
	ChallengeID int                        `json:"challenge_id"`
	Snapshots   []*models.PositionSnapshot `json:"snapshots"`
	MinRank     int                        `json:"min_rank"`
	MaxRank     int                        `json:"max_rank"`
}

type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Rank      int       `json:"rank"`
}

type PositionTimeSeries struct {
	Points           []TimeSeriesPoint `json:"points"`
	MinRank          int               `json:"min_rank"`
	MaxRank          int               `json:"max_rank"`
	ParticipantCount int               `json:"participant_count"`
}

type CurrentPositions struct {
	Positions []*models.PositionSnapshot `json:"positions"`
	BestRank  int                        `json:"best_rank"`
	WorstRank int                        `json:"worst_rank"`
}

type PositionService interface {
	// RecomputePositions appends a snapshot for every participant whose rank
	// changed and returns how many were appended. All or nothing.
	RecomputePositions(ctx context.Context, challengeID int) (int, error)
	RankedParticipants(ctx context.Context, challengeID int, asOf time.Time) ([]RankedParticipant, error)
	PositionHistory(ctx context.Context, userID, challengeID int) (*PositionHistory, error)
	PositionTimeSeries(ctx context.Context, userID, challengeID int) (*PositionTimeSeries, error)
	DailyRankDelta(ctx context.Context, userID, challengeID int, asOf time.Time) (standings.RankDelta, error)
	// CurrentPositions omits private challenges the viewer may not see.
	CurrentPositions(ctx context.Context, viewer *Actor, userID int) (*CurrentPositions, error)
	RecomputeAll(ctx context.Context) error
	RecomputeForUser(ctx context.Context, userID int) error
}

type PositionServiceConfig struct {
	Concurrency int
	Now         func() time.Time
}

type positionService struct {
	tx              Transactor
	challengeRepo   repositories.ChallengeRepository
	participantRepo repositories.ParticipantRepository
	positionRepo    repositories.PositionRepository
	eligibility     EligibilityFilter
	recorder        metrics.Recorder
	logger          *zap.Logger
	concurrency     int
	now             func() time.Time
}

func NewPositionService(
	tx Transactor,
	challengeRepo repositories.ChallengeRepository,
	participantRepo repositories.ParticipantRepository,
	positionRepo repositories.PositionRepository,
	eligibility EligibilityFilter,
	recorder metrics.Recorder,
	logger *zap.Logger,
	cfg PositionServiceConfig,
) PositionService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &positionService{
		tx:              tx,
		challengeRepo:   challengeRepo,
		participantRepo: participantRepo,
		positionRepo:    positionRepo,
		eligibility:     eligibility,
		recorder:        recorder,
		logger:          logger,
		concurrency:     cfg.Concurrency,
		now:             cfg.Now,
	}
}

func participantIDs(participants []*models.ChallengeParticipant) []int {
	ids := make([]int, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

func (s *positionService) RecomputePositions(ctx context.Context, challengeID int) (int, error) {
	start := time.Now()
	appended := 0

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		// Row lock serializes concurrent recomputations of one challenge.
		challenge, err := s.challengeRepo.LockByID(ctx, exec, challengeID)
		if err != nil {
			return err
		}

		participants, err := s.participantRepo.ListByChallenge(ctx, exec, challengeID)
		if err != nil {
			return err
		}
		if len(participants) == 0 {
			return nil
		}
		ids := participantIDs(participants)

		window := challenge.Window()
		tracks, err := s.eligibility.EligibleTracksByUser(ctx, exec, ids, &window)
		if err != nil {
			return err
		}
		ranked := standings.Rank(standings.Totals(ids, tracks, window))

		latest, err := s.positionRepo.LatestByChallenge(ctx, exec, challengeID, nil)
		if err != nil {
			return err
		}
		latestRanks := make(map[int]int, len(latest))
		for userID, snap := range latest {
			latestRanks[userID] = snap.Rank
		}

		now := s.now().UTC()
		changed := standings.ChangedStandings(ranked, latestRanks)
		for _, st := range changed {
			var last *time.Time
			if prev, ok := latest[st.UserID]; ok {
				last = &prev.RecordedAt
			}
			cid := challengeID
			snap := &models.PositionSnapshot{
				UserID:      st.UserID,
				ChallengeID: &cid,
				RecordedAt:  standings.NextTimestamp(now, last),
				Rank:        st.Rank,
			}
			if err := s.positionRepo.Create(ctx, exec, snap); err != nil {
				return fmt.Errorf("append snapshot for user %d: %w", st.UserID, err)
			}
		}
		appended = len(changed)
		return nil
	})

	if err != nil {
		s.recorder.ObserveRecompute(time.Since(start), 0, err)
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return 0, ErrChallengeNotFound
		}
		s.logger.Error("position recomputation rolled back",
			zap.Int("challenge_id", challengeID),
			zap.Error(err),
		)
		return 0, fmt.Errorf("%w: recompute challenge %d: %w", ErrPersistence, challengeID, err)
	}

	s.recorder.ObserveRecompute(time.Since(start), appended, nil)
	if appended > 0 {
		s.logger.Debug("positions changed",
			zap.Int("challenge_id", challengeID),
			zap.Int("appended", appended),
		)
	}
	return appended, nil
}

func (s *positionService) RankedParticipants(ctx context.Context, challengeID int, asOf time.Time) ([]RankedParticipant, error) {
	if _, err := s.RecomputePositions(ctx, challengeID); err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return nil, err
		}
		// Already logged; serve the last committed history.
		s.logger.Warn("serving standings without fresh recomputation", zap.Int("challenge_id", challengeID))
	}

	challenge, err := s.challengeRepo.GetByID(ctx, nil, challengeID)
	if err != nil {
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to load challenge %d: %w", challengeID, err)
	}

	participants, err := s.participantRepo.ListByChallenge(ctx, nil, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	ids := participantIDs(participants)
	logins := make(map[int]string, len(participants))
	for _, p := range participants {
		if p.User != nil {
			logins[p.UserID] = p.User.Login
		}
	}

	window := challenge.Window()
	tracks, err := s.eligibility.EligibleTracksByUser(ctx, nil, ids, &window)
	if err != nil {
		return nil, err
	}
	ranked := standings.Rank(standings.Totals(ids, tracks, window))

	day := models.DayRange(asOf.UTC())
	upToToday, err := s.positionRepo.LatestByChallenge(ctx, nil, challengeID, &day.To)
	if err != nil {
		return nil, fmt.Errorf("failed to load today's snapshots: %w", err)
	}
	beforeToday, err := s.positionRepo.LatestByChallenge(ctx, nil, challengeID, &day.From)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous snapshots: %w", err)
	}

	out := make([]RankedParticipant, 0, len(ranked))
	for _, st := range ranked {
		var today *models.PositionSnapshot
		if snap, ok := upToToday[st.UserID]; ok && day.Contains(snap.RecordedAt) {
			today = snap
		}
		var duration int64
		for _, t := range tracks[st.UserID] {
			if window.Contains(t.RecordTime) {
				duration += t.Duration
			}
		}
		out = append(out, RankedParticipant{
			UserID:        st.UserID,
			Login:         logins[st.UserID],
			TotalDistance: round2(st.TotalDistance),
			TotalDuration: duration,
			Rank:          st.Rank,
			RankDelta:     standings.DailyDelta(today, beforeToday[st.UserID]),
		})
	}
	return out, nil
}

func (s *positionService) history(ctx context.Context, userID, challengeID int) (*models.Challenge, []*models.PositionSnapshot, error) {
	challenge, err := s.challengeRepo.GetByID(ctx, nil, challengeID)
	if err != nil {
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return nil, nil, ErrChallengeNotFound
		}
		return nil, nil, fmt.Errorf("failed to load challenge %d: %w", challengeID, err)
	}
	snapshots, err := s.positionRepo.ListByUserAndChallenge(ctx, nil, userID, challengeID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load position history: %w", err)
	}
	return challenge, snapshots, nil
}

func (s *positionService) PositionHistory(ctx context.Context, userID, challengeID int) (*PositionHistory, error) {
	_, snapshots, err := s.history(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	minRank, maxRank := standings.RankBounds(snapshots)
	return &PositionHistory{
		UserID:      userID,
		ChallengeID: challengeID,
		Snapshots:   snapshots,
		MinRank:     minRank,
		MaxRank:     maxRank,
	}, nil
}

func (s *positionService) PositionTimeSeries(ctx context.Context, userID, challengeID int) (*PositionTimeSeries, error) {
	challenge, snapshots, err := s.history(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	points := make([]TimeSeriesPoint, 0, len(snapshots))
	for _, snap := range snapshots {
		points = append(points, TimeSeriesPoint{Timestamp: snap.RecordedAt, Rank: snap.Rank})
	}
	minRank, maxRank := standings.RankBounds(snapshots)
	return &PositionTimeSeries{
		Points:           points,
		MinRank:          minRank,
		MaxRank:          maxRank,
		ParticipantCount: challenge.ParticipantCount,
	}, nil
}

func (s *positionService) DailyRankDelta(ctx context.Context, userID, challengeID int, asOf time.Time) (standings.RankDelta, error) {
	day := models.DayRange(asOf.UTC())

	today, err := s.latestSnapshot(ctx, userID, challengeID, day.To)
	if err != nil {
		return standings.NoChange, err
	}
	if today != nil && !day.Contains(today.RecordedAt) {
		today = nil
	}
	before, err := s.latestSnapshot(ctx, userID, challengeID, day.From)
	if err != nil {
		return standings.NoChange, err
	}
	return standings.DailyDelta(today, before), nil
}

func (s *positionService) latestSnapshot(ctx context.Context, userID, challengeID int, before time.Time) (*models.PositionSnapshot, error) {
	snap, err := s.positionRepo.LatestForUser(ctx, nil, userID, challengeID, &before)
	if errors.Is(err, repositories.ErrPositionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, nil
}

func (s *positionService) CurrentPositions(ctx context.Context, viewer *Actor, userID int) (*CurrentPositions, error) {
	all, err := s.positionRepo.CurrentByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current positions: %w", err)
	}

	joined, err := s.viewerChallenges(ctx, viewer, all)
	if err != nil {
		return nil, err
	}
	positions := make([]*models.PositionSnapshot, 0, len(all))
	for _, p := range all {
		if canSeeChallenge(viewer, p.Challenge, joined) {
			positions = append(positions, p)
		}
	}

	best, worst := standings.RankBounds(positions)
	return &CurrentPositions{Positions: positions, BestRank: best, WorstRank: worst}, nil
}

// viewerChallenges loads the viewer's memberships only when a private
// challenge is among the snapshots.
func (s *positionService) viewerChallenges(ctx context.Context, viewer *Actor, snapshots []*models.PositionSnapshot) (map[int]bool, error) {
	joined := make(map[int]bool)
	if viewer == nil || viewer.IsAdmin() {
		return joined, nil
	}
	private := false
	for _, p := range snapshots {
		if p.Challenge.IsPrivate && p.Challenge.CreatorID != viewer.UserID {
			private = true
			break
		}
	}
	if !private {
		return joined, nil
	}
	mine, err := s.challengeRepo.ListByParticipant(ctx, nil, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges of viewer %d: %w", viewer.UserID, err)
	}
	for _, c := range mine {
		joined[c.ID] = true
	}
	return joined, nil
}

func (s *positionService) RecomputeAll(ctx context.Context) error {
	ids, err := s.challengeRepo.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list challenges: %w", err)
	}
	return s.recomputeMany(ctx, ids)
}

func (s *positionService) RecomputeForUser(ctx context.Context, userID int) error {
	challenges, err := s.challengeRepo.ListByParticipant(ctx, nil, userID)
	if err != nil {
		return fmt.Errorf("failed to list challenges of user %d: %w", userID, err)
	}
	ids := make([]int, 0, len(challenges))
	for _, c := range challenges {
		ids = append(ids, c.ID)
	}
	return s.recomputeMany(ctx, ids)
}

// recomputeMany runs every challenge in its own transaction; one failure
// does not stop the others.
func (s *positionService) recomputeMany(ctx context.Context, ids []int) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := s.RecomputePositions(gctx, id); err != nil && !errors.Is(err, ErrChallengeNotFound) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/ride-challenges/ingest"
	"github.com/Dosada05/ride-challenges/metrics"
	"github.com/Dosada05/ride-challenges/models"
	"github.com/Dosada05/ride-challenges/repositories"
	"github.com/Dosada05/ride-challenges/strava"
)

// ActivityProvider is the subset of the Strava client used by the sync.
type ActivityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*strava.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*strava.Token, error)
	Athlete(ctx context.Context, accessToken string) (*strava.Athlete, error)
	Activities(ctx context.Context, accessToken string, since time.Time) ([]strava.Activity, error)
}

type StravaService interface {
	AuthURL(userID int) (string, error)
	Connect(ctx context.Context, userID int, code string) (*models.StravaAccount, error)
	// SyncUser returns the number of newly imported activities. Provider
	// failures come back wrapped in ErrExternalProvider with zero imports.
	SyncUser(ctx context.Context, userID int) (int, error)
	SyncAll(ctx context.Context) error
}

type StravaServiceConfig struct {
	SyncDays    int
	Concurrency int
	Now         func() time.Time
}

type stravaService struct {
	provider   ActivityProvider
	stravaRepo repositories.StravaRepository
	tracks     TrackService
	positions  PositionService
	recorder   metrics.Recorder
	logger     *zap.Logger

	syncWindow  time.Duration
	concurrency int
	now         func() time.Time
}

// NewStravaService accepts a nil provider; every call then fails with
// ErrStravaDisabled.
func NewStravaService(
	provider ActivityProvider,
	stravaRepo repositories.StravaRepository,
	tracks TrackService,
	positions PositionService,
	recorder metrics.Recorder,
	logger *zap.Logger,
	cfg StravaServiceConfig,
) StravaService {
	if cfg.SyncDays <= 0 {
		cfg.SyncDays = 60
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &stravaService{
		provider:    provider,
		stravaRepo:  stravaRepo,
		tracks:      tracks,
		positions:   positions,
		recorder:    recorder,
		logger:      logger,
		syncWindow:  time.Duration(cfg.SyncDays) * 24 * time.Hour,
		concurrency: cfg.Concurrency,
		now:         cfg.Now,
	}
}

func (s *stravaService) AuthURL(userID int) (string, error) {
	if s.provider == nil {
		return "", ErrStravaDisabled
	}
	return s.provider.AuthCodeURL(strconv.Itoa(userID)), nil
}

func (s *stravaService) Connect(ctx context.Context, userID int, code string) (*models.StravaAccount, error) {
	if s.provider == nil {
		return nil, ErrStravaDisabled
	}
	if code == "" {
		return nil, fieldError("code", "must be provided")
	}

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("strava token exchange failed", zap.Int("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrExternalProvider, err)
	}

	acc := &models.StravaAccount{
		UserID:         userID,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		TokenExpiresAt: tok.Expiry,
	}
	athleteID := tok.AthleteID
	if athleteID == 0 {
		// токен без athlete: профиль необязателен, подключение не срываем
		if athlete, err := s.provider.Athlete(ctx, tok.AccessToken); err != nil {
			s.logger.Warn("strava athlete lookup failed", zap.Int("user_id", userID), zap.Error(err))
		} else {
			athleteID = athlete.ID
		}
	}
	if athleteID != 0 {
		url := strava.ProfileURL(athleteID)
		acc.ProfileURL = &url
	}
	if err := s.stravaRepo.Upsert(ctx, acc); err != nil {
		return nil, fmt.Errorf("failed to save strava account: %w", err)
	}
	s.logger.Info("strava account connected", zap.Int("user_id", userID))
	return acc, nil
}

func (s *stravaService) SyncUser(ctx context.Context, userID int) (imported int, err error) {
	if s.provider == nil {
		return 0, ErrStravaDisabled
	}
	defer func() {
		s.recorder.ObserveSync(imported, err)
	}()

	acc, err := s.stravaRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrStravaAccountNotFound) {
			return 0, ErrStravaNotConnected
		}
		return 0, err
	}

	now := s.now()
	if acc.TokenExpired(now) {
		tok, err := s.provider.Refresh(ctx, acc.RefreshToken)
		if err != nil {
			s.logger.Warn("strava token refresh failed", zap.Int("user_id", userID), zap.Error(err))
			return 0, fmt.Errorf("%w: %w", ErrExternalProvider, err)
		}
		if err := s.stravaRepo.UpdateTokens(ctx, userID, tok.AccessToken, tok.RefreshToken, tok.Expiry); err != nil {
			return 0, fmt.Errorf("failed to store refreshed strava tokens: %w", err)
		}
		acc.AccessToken = tok.AccessToken
	}

	activities, err := s.provider.Activities(ctx, acc.AccessToken, now.Add(-s.syncWindow))
	if err != nil {
		s.logger.Warn("strava activity fetch failed", zap.Int("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrExternalProvider, err)
	}

	for _, a := range activities {
		ok, err := s.tracks.Import(ctx, userID, ingest.FromStrava(a))
		if err != nil {
			return imported, fmt.Errorf("failed to import strava activity %d: %w", a.ID, err)
		}
		if ok {
			imported++
		}
	}

	if err := s.stravaRepo.MarkSynced(ctx, userID, now); err != nil {
		s.logger.Error("failed to record strava sync time", zap.Int("user_id", userID), zap.Error(err))
	}
	if imported > 0 {
		if err := s.positions.RecomputeForUser(ctx, userID); err != nil {
			s.logger.Error("failed to refresh positions after sync", zap.Int("user_id", userID), zap.Error(err))
		}
	}

	s.logger.Info("strava sync finished",
		zap.Int("user_id", userID),
		zap.Int("fetched", len(activities)),
		zap.Int("imported", imported),
	)
	return imported, nil
}

// SyncAll syncs every connected user. Provider failures only get logged.
func (s *stravaService) SyncAll(ctx context.Context) error {
	if s.provider == nil {
		return ErrStravaDisabled
	}
	userIDs, err := s.stravaRepo.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list strava accounts: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			_, err := s.SyncUser(gctx, userID)
			if err != nil && !errors.Is(err, ErrExternalProvider) {
				mu.Lock()
				errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

package services

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Dosada05/ride-challenges/cache"
	"github.com/Dosada05/ride-challenges/metrics"
	"github.com/Dosada05/ride-challenges/strava"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// countingRecorder tallies engine events.
type countingRecorder struct {
	mu          sync.Mutex
	recomputes  int
	failures    int
	cacheHits   int
	cacheMisses int
	syncs       int
	syncErrors  int
	imported    int
}

func (r *countingRecorder) ObserveRecompute(_ time.Duration, _ int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recomputes++
	if err != nil {
		r.failures++
	}
}

func (r *countingRecorder) ObserveStatsCache(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.cacheHits++
	} else {
		r.cacheMisses++
	}
}

func (r *countingRecorder) ObserveSync(imported int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncs++
	r.imported += imported
	if err != nil {
		r.syncErrors++
	}
}

var _ metrics.Recorder = (*countingRecorder)(nil)

type testEnv struct {
	store    *memStore
	clock    *testClock
	recorder *countingRecorder
	provider *fakeProvider

	positions  PositionService
	stats      StatisticsService
	challenges ChallengeService
	tracks     TrackService
	comments   CommentService
	auth       AuthService
	users      UserService
	strava     StravaService
}

func newTestEnv(t *testing.T, store cache.Store) *testEnv {
	t.Helper()
	if store == nil {
		store = cache.NewNoopStore()
	}

	mem := newMemStore()
	clock := &testClock{now: mem.now}
	recorder := &countingRecorder{}
	provider := &fakeProvider{activities: make(map[string][]strava.Activity), athleteID: 42, expiresIn: 6 * time.Hour}
	logger := zap.NewNop()

	userRepo := fakeUserRepo{mem}
	trackRepo := fakeTrackRepo{mem}
	challengeRepo := fakeChallengeRepo{mem}
	participantRepo := fakeParticipantRepo{mem}
	positionRepo := fakePositionRepo{mem}
	commentRepo := fakeCommentRepo{mem}
	stravaRepo := fakeStravaRepo{mem}
	tx := memTransactor{store: mem}

	eligibility := NewEligibilityFilter(trackRepo)
	positions := NewPositionService(tx, challengeRepo, participantRepo, positionRepo, eligibility, recorder, logger,
		PositionServiceConfig{Concurrency: 1, Now: clock.Now})
	stats := NewStatisticsService(userRepo, trackRepo, challengeRepo, eligibility, store, time.Minute, recorder, logger)
	challenges := NewChallengeService(tx, challengeRepo, participantRepo, positionRepo, commentRepo, eligibility, positions, logger)
	tracks := NewTrackService(trackRepo, challengeRepo, eligibility, positions, nil, logger)

	return &testEnv{
		store:      mem,
		clock:      clock,
		recorder:   recorder,
		provider:   provider,
		positions:  positions,
		stats:      stats,
		challenges: challenges,
		tracks:     tracks,
		comments:   NewCommentService(commentRepo, challenges),
		auth:       NewAuthService(userRepo, "test-secret"),
		users:      NewUserService(userRepo, stravaRepo, stats, positions),
		strava: NewStravaService(provider, stravaRepo, tracks, positions, recorder, logger,
			StravaServiceConfig{SyncDays: 30, Concurrency: 1, Now: clock.Now}),
	}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func (e *testEnv) setTime(t time.Time) {
	e.clock.Set(t)
	e.store.mu.Lock()
	e.store.now = t
	e.store.mu.Unlock()
}

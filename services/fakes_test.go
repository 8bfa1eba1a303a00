package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/ride-challenges/models"
	"github.com/Dosada05/ride-challenges/repositories"
	"github.com/Dosada05/ride-challenges/strava"
)

// memStore backs every fake repository. Writes replace values instead of
// mutating them so a checkpoint can be restored on rollback.
type memStore struct {
	mu sync.Mutex

	nextID       int
	trackVersion int
	now          time.Time

	users        map[int]*models.User
	tracks       map[int]*models.Track
	challenges   map[int]*models.Challenge
	participants []*models.ChallengeParticipant
	snapshots    []*models.PositionSnapshot
	comments     map[int]*models.Comment
	strava       map[int]*models.StravaAccount

	failSnapshotFor map[int]error
	commits         int
	rollbacks       int
}

func newMemStore() *memStore {
	return &memStore{
		now:             time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
		users:           make(map[int]*models.User),
		tracks:          make(map[int]*models.Track),
		challenges:      make(map[int]*models.Challenge),
		comments:        make(map[int]*models.Comment),
		strava:          make(map[int]*models.StravaAccount),
		failSnapshotFor: make(map[int]error),
	}
}

func (m *memStore) id() int {
	m.nextID++
	return m.nextID
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	out := make(map[K]V, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (m *memStore) checkpoint() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	nextID, version := m.nextID, m.trackVersion
	users, tracks, challenges := copyMap(m.users), copyMap(m.tracks), copyMap(m.challenges)
	comments, accounts := copyMap(m.comments), copyMap(m.strava)
	participants := append([]*models.ChallengeParticipant(nil), m.participants...)
	snapshots := append([]*models.PositionSnapshot(nil), m.snapshots...)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.nextID, m.trackVersion = nextID, version
		m.users, m.tracks, m.challenges = users, tracks, challenges
		m.comments, m.strava = comments, accounts
		m.participants, m.snapshots = participants, snapshots
	}
}

// seed helpers

func (m *memStore) addUser(login string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{ID: m.id(), Login: login, CreatedAt: m.now}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addTrack(userID int, filename string, km float64, recorded time.Time, typ string) *models.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &models.Track{
		ID:         m.id(),
		UserID:     userID,
		Filename:   filename,
		Distance:   km,
		Duration:   int64(km * 180),
		RecordTime: recorded,
		UploadTime: recorded,
	}
	if typ != "" {
		t.Type = &typ
	}
	m.tracks[t.ID] = t
	m.trackVersion++
	return t
}

func (m *memStore) addChallenge(creatorID int, name, start, end string) *models.Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, _ := time.Parse(dateLayout, start)
	e, _ := time.Parse(dateLayout, end)
	c := &models.Challenge{
		ID:             m.id(),
		Name:           name,
		TargetDistance: 100,
		StartDate:      s,
		EndDate:        e,
		CreatorID:      creatorID,
		Type:           models.ChallengeGroup,
		CreatedAt:      m.now,
	}
	m.challenges[c.ID] = c
	return c
}

func (m *memStore) join(challengeID int, userIDs ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, uid := range userIDs {
		m.participants = append(m.participants, &models.ChallengeParticipant{
			ID: m.id(), ChallengeID: challengeID, UserID: uid, JoinedAt: m.now,
		})
	}
}

func (m *memStore) snapshotsOf(userID, challengeID int) []*models.PositionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.PositionSnapshot, 0)
	for _, s := range m.snapshots {
		if s.UserID == userID && s.ChallengeID != nil && *s.ChallengeID == challengeID {
			out = append(out, s)
		}
	}
	return out
}

func (m *memStore) snapshotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// memTransactor restores the checkpoint when fn fails.
type memTransactor struct{ store *memStore }

func (t memTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, exec repositories.SQLExecutor) error) error {
	restore := t.store.checkpoint()
	if err := fn(ctx, nil); err != nil {
		restore()
		t.store.mu.Lock()
		t.store.rollbacks++
		t.store.mu.Unlock()
		return err
	}
	t.store.mu.Lock()
	t.store.commits++
	t.store.mu.Unlock()
	return nil
}

// users

type fakeUserRepo struct{ *memStore }

func (r fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Login == user.Login {
			return repositories.ErrUserLoginConflict
		}
		if u.Email != nil && user.Email != nil && *u.Email == *user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	user.ID = r.id()
	user.CreatedAt = r.now
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r fakeUserRepo) GetByLogin(_ context.Context, login string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Login == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r fakeUserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	for _, u := range r.users {
		if u.ID == user.ID {
			continue
		}
		if u.Login == user.Login {
			return repositories.ErrUserLoginConflict
		}
		if u.Email != nil && user.Email != nil && *u.Email == *user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	stored.Login = user.Login
	stored.Email = user.Email
	return nil
}

func (r fakeUserRepo) List(_ context.Context, limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return []*models.User{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r fakeUserRepo) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

// tracks

type fakeTrackRepo struct{ *memStore }

func (r fakeTrackRepo) Create(_ context.Context, _ repositories.SQLExecutor, track *models.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tracks {
		if t.Filename == track.Filename {
			return repositories.ErrTrackDuplicate
		}
	}
	if _, ok := r.users[track.UserID]; !ok {
		return repositories.ErrTrackUserInvalid
	}
	track.ID = r.id()
	track.UploadTime = r.now
	cp := *track
	r.tracks[track.ID] = &cp
	r.trackVersion++
	return nil
}

func (r fakeTrackRepo) GetByID(_ context.Context, id int) (*models.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tracks[id]
	if !ok {
		return nil, repositories.ErrTrackNotFound
	}
	cp := *t
	return &cp, nil
}

func (r fakeTrackRepo) ExistsByFilename(_ context.Context, _ repositories.SQLExecutor, filename string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tracks {
		if t.Filename == filename {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeTrackRepo) List(_ context.Context, _ repositories.SQLExecutor, filter repositories.TrackFilter) ([]*models.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users map[int]bool
	if filter.UserIDs != nil {
		users = make(map[int]bool, len(filter.UserIDs))
		for _, id := range filter.UserIDs {
			users[id] = true
		}
	}
	out := make([]*models.Track, 0)
	for _, t := range r.tracks {
		if users != nil && !users[t.UserID] {
			continue
		}
		if filter.Window != nil && !filter.Window.Contains(t.RecordTime) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordTime.Equal(out[j].RecordTime) {
			return out[i].RecordTime.After(out[j].RecordTime)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r fakeTrackRepo) ListAll(ctx context.Context, limit, offset int) ([]*models.Track, error) {
	all, _ := r.List(ctx, nil, repositories.TrackFilter{})
	if offset >= len(all) {
		return []*models.Track{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r fakeTrackRepo) ListOwnerIDs(context.Context, repositories.SQLExecutor) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[int]bool)
	ids := make([]int, 0)
	for _, t := range r.tracks {
		if !seen[t.UserID] {
			seen[t.UserID] = true
			ids = append(ids, t.UserID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (r fakeTrackRepo) UpdateName(_ context.Context, id int, name *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tracks[id]
	if !ok {
		return repositories.ErrTrackNotFound
	}
	cp := *t
	cp.Name = name
	r.tracks[id] = &cp
	return nil
}

func (r fakeTrackRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tracks[id]; !ok {
		return repositories.ErrTrackNotFound
	}
	delete(r.tracks, id)
	r.trackVersion++
	return nil
}

func (r fakeTrackRepo) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tracks), nil
}

func (r fakeTrackRepo) ChangeMarker(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("%d-%d", len(r.tracks), r.trackVersion), nil
}

// challenges

type fakeChallengeRepo struct{ *memStore }

func (r fakeChallengeRepo) withCount(c *models.Challenge) *models.Challenge {
	cp := *c
	cp.ParticipantCount = 0
	for _, p := range r.participants {
		if p.ChallengeID == c.ID {
			cp.ParticipantCount++
		}
	}
	return &cp
}

func (r fakeChallengeRepo) Create(_ context.Context, _ repositories.SQLExecutor, c *models.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[c.CreatorID]; !ok {
		return repositories.ErrChallengeCreatorInvalid
	}
	c.ID = r.id()
	c.CreatedAt = r.now
	cp := *c
	r.challenges[c.ID] = &cp
	return nil
}

func (r fakeChallengeRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return nil, repositories.ErrChallengeNotFound
	}
	return r.withCount(c), nil
}

func (r fakeChallengeRepo) LockByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Challenge, error) {
	return r.GetByID(ctx, exec, id)
}

func (r fakeChallengeRepo) sorted(keep func(*models.Challenge) bool) []*models.Challenge {
	out := make([]*models.Challenge, 0)
	for _, c := range r.challenges {
		if keep(c) {
			out = append(out, r.withCount(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndDate.Equal(out[j].EndDate) {
			return out[i].EndDate.After(out[j].EndDate)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r fakeChallengeRepo) List(context.Context) ([]*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(*models.Challenge) bool { return true }), nil
}

func (r fakeChallengeRepo) ListIDs(context.Context) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.challenges))
	for id := range r.challenges {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (r fakeChallengeRepo) ListByParticipant(_ context.Context, _ repositories.SQLExecutor, userID int) ([]*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	joined := make(map[int]bool)
	for _, p := range r.participants {
		if p.UserID == userID {
			joined[p.ChallengeID] = true
		}
	}
	return r.sorted(func(c *models.Challenge) bool { return joined[c.ID] }), nil
}

func (r fakeChallengeRepo) SetClosed(_ context.Context, id int, closed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	if !ok {
		return repositories.ErrChallengeNotFound
	}
	cp := *c
	cp.IsClosed = closed
	r.challenges[id] = &cp
	return nil
}

func (r fakeChallengeRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.challenges[id]; !ok {
		return repositories.ErrChallengeNotFound
	}
	delete(r.challenges, id)
	return nil
}

func (r fakeChallengeRepo) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.challenges), nil
}

// participants

type fakeParticipantRepo struct{ *memStore }

func (r fakeParticipantRepo) Create(_ context.Context, _ repositories.SQLExecutor, p *models.ChallengeParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.challenges[p.ChallengeID]; !ok {
		return repositories.ErrParticipantChallengeInvalid
	}
	if _, ok := r.users[p.UserID]; !ok {
		return repositories.ErrParticipantUserInvalid
	}
	for _, existing := range r.participants {
		if existing.ChallengeID == p.ChallengeID && existing.UserID == p.UserID {
			return repositories.ErrParticipantConflict
		}
	}
	p.ID = r.id()
	p.JoinedAt = r.now
	cp := *p
	r.participants = append(r.participants, &cp)
	return nil
}

func (r fakeParticipantRepo) Exists(_ context.Context, _ repositories.SQLExecutor, challengeID, userID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.ChallengeID == challengeID && p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeParticipantRepo) ListByChallenge(_ context.Context, _ repositories.SQLExecutor, challengeID int) ([]*models.ChallengeParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.ChallengeParticipant, 0)
	for _, p := range r.participants {
		if p.ChallengeID != challengeID {
			continue
		}
		cp := *p
		if u, ok := r.users[p.UserID]; ok {
			cp.User = &models.User{ID: u.ID, Login: u.Login}
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r fakeParticipantRepo) Delete(_ context.Context, _ repositories.SQLExecutor, challengeID, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.participants {
		if p.ChallengeID == challengeID && p.UserID == userID {
			r.participants = append(r.participants[:i:i], r.participants[i+1:]...)
			return nil
		}
	}
	return repositories.ErrParticipantNotFound
}

func (r fakeParticipantRepo) DeleteByChallenge(_ context.Context, _ repositories.SQLExecutor, challengeID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := make([]*models.ChallengeParticipant, 0, len(r.participants))
	for _, p := range r.participants {
		if p.ChallengeID != challengeID {
			kept = append(kept, p)
		}
	}
	r.participants = kept
	return nil
}

// position snapshots

type fakePositionRepo struct{ *memStore }

func (r fakePositionRepo) Create(_ context.Context, _ repositories.SQLExecutor, s *models.PositionSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failSnapshotFor[s.UserID]; err != nil {
		return err
	}
	if _, ok := r.users[s.UserID]; !ok {
		return repositories.ErrPositionUserInvalid
	}
	s.ID = r.id()
	cp := *s
	r.snapshots = append(r.snapshots, &cp)
	return nil
}

func newer(a, b *models.PositionSnapshot) bool {
	if !a.RecordedAt.Equal(b.RecordedAt) {
		return a.RecordedAt.After(b.RecordedAt)
	}
	return a.ID > b.ID
}

func (r fakePositionRepo) LatestByChallenge(_ context.Context, _ repositories.SQLExecutor, challengeID int, before *time.Time) (map[int]*models.PositionSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]*models.PositionSnapshot)
	for _, s := range r.snapshots {
		if s.ChallengeID == nil || *s.ChallengeID != challengeID {
			continue
		}
		if before != nil && !s.RecordedAt.Before(*before) {
			continue
		}
		if cur, ok := out[s.UserID]; !ok || newer(s, cur) {
			cp := *s
			out[s.UserID] = &cp
		}
	}
	return out, nil
}

func (r fakePositionRepo) LatestForUser(ctx context.Context, exec repositories.SQLExecutor, userID, challengeID int, before *time.Time) (*models.PositionSnapshot, error) {
	all, _ := r.LatestByChallenge(ctx, exec, challengeID, before)
	s, ok := all[userID]
	if !ok {
		return nil, repositories.ErrPositionNotFound
	}
	return s, nil
}

func (r fakePositionRepo) ListByUserAndChallenge(_ context.Context, _ repositories.SQLExecutor, userID, challengeID int) ([]*models.PositionSnapshot, error) {
	out := r.snapshotsOf(userID, challengeID)
	sort.Slice(out, func(i, j int) bool { return newer(out[j], out[i]) })
	return out, nil
}

func (r fakePositionRepo) CurrentByUser(_ context.Context, _ repositories.SQLExecutor, userID int) ([]*models.PositionSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := make(map[int]*models.PositionSnapshot)
	for _, s := range r.snapshots {
		if s.UserID != userID || s.ChallengeID == nil {
			continue
		}
		if cur, ok := latest[*s.ChallengeID]; !ok || newer(s, cur) {
			latest[*s.ChallengeID] = s
		}
	}
	out := make([]*models.PositionSnapshot, 0, len(latest))
	for cid, s := range latest {
		c, ok := r.challenges[cid]
		if !ok {
			continue
		}
		cp := *s
		cp.Challenge = &models.Challenge{ID: c.ID, Name: c.Name, EndDate: c.EndDate, CreatorID: c.CreatorID, IsPrivate: c.IsPrivate}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Challenge.EndDate.Equal(out[j].Challenge.EndDate) {
			return out[i].Challenge.EndDate.After(out[j].Challenge.EndDate)
		}
		return out[i].Challenge.ID > out[j].Challenge.ID
	})
	return out, nil
}

func (r fakePositionRepo) DetachChallenge(_ context.Context, _ repositories.SQLExecutor, challengeID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.snapshots {
		if s.ChallengeID != nil && *s.ChallengeID == challengeID {
			cp := *s
			cp.ChallengeID = nil
			r.snapshots[i] = &cp
		}
	}
	return nil
}

// comments

type fakeCommentRepo struct{ *memStore }

func (r fakeCommentRepo) Create(_ context.Context, c *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.challenges[c.ChallengeID]; !ok {
		return repositories.ErrCommentChallengeInvalid
	}
	c.ID = r.id()
	c.CreatedAt = r.now
	cp := *c
	r.comments[c.ID] = &cp
	return nil
}

func (r fakeCommentRepo) GetByID(_ context.Context, id int) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, repositories.ErrCommentNotFound
	}
	cp := *c
	return &cp, nil
}

func (r fakeCommentRepo) ListByChallenge(_ context.Context, challengeID int) ([]*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Comment, 0)
	for _, c := range r.comments {
		if c.ChallengeID == challengeID {
			cp := *c
			if u, ok := r.users[c.UserID]; ok {
				cp.AuthorLogin = u.Login
			}
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeCommentRepo) UpdateText(_ context.Context, id int, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return repositories.ErrCommentNotFound
	}
	cp := *c
	cp.Text = text
	r.comments[id] = &cp
	return nil
}

func (r fakeCommentRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return repositories.ErrCommentNotFound
	}
	delete(r.comments, id)
	return nil
}

func (r fakeCommentRepo) DeleteByChallenge(_ context.Context, _ repositories.SQLExecutor, challengeID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.comments {
		if c.ChallengeID == challengeID {
			delete(r.comments, id)
		}
	}
	return nil
}

// strava accounts

type fakeStravaRepo struct{ *memStore }

func (r fakeStravaRepo) Upsert(_ context.Context, acc *models.StravaAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.strava[acc.UserID]; ok {
		acc.ID = existing.ID
	} else {
		acc.ID = r.id()
	}
	cp := *acc
	r.strava[acc.UserID] = &cp
	return nil
}

func (r fakeStravaRepo) GetByUserID(_ context.Context, userID int) (*models.StravaAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.strava[userID]
	if !ok {
		return nil, repositories.ErrStravaAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (r fakeStravaRepo) UpdateTokens(_ context.Context, userID int, access, refresh string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.strava[userID]
	if !ok {
		return repositories.ErrStravaAccountNotFound
	}
	cp := *acc
	cp.AccessToken, cp.RefreshToken, cp.TokenExpiresAt = access, refresh, expiresAt
	r.strava[userID] = &cp
	return nil
}

func (r fakeStravaRepo) MarkSynced(_ context.Context, userID int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.strava[userID]
	if !ok {
		return repositories.ErrStravaAccountNotFound
	}
	cp := *acc
	cp.LastSyncedAt = &at
	r.strava[userID] = &cp
	return nil
}

func (r fakeStravaRepo) ListUserIDs(context.Context) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.strava))
	for id := range r.strava {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// activity provider

type fakeProvider struct {
	mu         sync.Mutex
	activities map[string][]strava.Activity
	fetchErr   error
	refreshErr error
	refreshed  int
	exchanged  []string
	athleteID  int64
	// profileID is what Athlete reports when the token carries no athlete.
	profileID  int64
	expiresIn  time.Duration
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://strava.test/oauth?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*strava.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if code == "bad" {
		return nil, errors.New("invalid code")
	}
	p.exchanged = append(p.exchanged, code)
	return &strava.Token{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		Expiry:       time.Now().Add(p.expiresIn),
		AthleteID:    p.athleteID,
	}, nil
}

func (p *fakeProvider) Refresh(_ context.Context, refreshToken string) (*strava.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	p.refreshed++
	return &strava.Token{AccessToken: "fresh", RefreshToken: refreshToken, Expiry: time.Now().Add(6 * time.Hour)}, nil
}

func (p *fakeProvider) Athlete(_ context.Context, _ string) (*strava.Athlete, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.profileID == 0 {
		return nil, errors.New("athlete endpoint unavailable")
	}
	return &strava.Athlete{ID: p.profileID, Username: "rider"}, nil
}

func (p *fakeProvider) Activities(_ context.Context, accessToken string, _ time.Time) ([]strava.Activity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.activities[accessToken], nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Dosada05/ride-challenges/models"
	"github.com/Dosada05/ride-challenges/repositories"
	"github.com/Dosada05/ride-challenges/standings"
)

const (
	dateLayout       = "2006-01-02"
	maxChallengeName = 120
)

type CreateChallengeInput struct {
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	TargetDistance int     `json:"target_distance"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	Type           string  `json:"type"`
	IsPrivate      bool    `json:"is_private"`
}

type Contribution struct {
	UserID   int     `json:"user_id"`
	Login    string  `json:"login"`
	Distance float64 `json:"distance"`
	Percent  float64 `json:"percent"`
}

type ChallengeProgress struct {
	ChallengeID      int                    `json:"challenge_id"`
	TargetDistance   int                    `json:"target_distance"`
	TotalDistance    float64                `json:"total_distance"`
	PercentComplete  float64                `json:"percent_complete"`
	TodayDistance    float64                `json:"today_distance"`
	Contributions    []Contribution         `json:"contributions"`
	DailyTotals      []standings.DailyTotal `json:"daily_totals"`
	IdleParticipants []*models.User         `json:"idle_participants"`
	ParticipantCount int                    `json:"participant_count"`
}

type ChallengeService interface {
	Create(ctx context.Context, creatorID int, input CreateChallengeInput) (*models.Challenge, error)
	// Get and List hide private challenges from users who are neither
	// creator, participant nor admin. A nil actor is anonymous.
	Get(ctx context.Context, viewer *Actor, id int) (*models.Challenge, error)
	List(ctx context.Context, viewer *Actor) ([]*models.Challenge, error)
	Participants(ctx context.Context, viewer *Actor, id int) ([]*models.ChallengeParticipant, error)
	Close(ctx context.Context, actor Actor, id int) error
	Reopen(ctx context.Context, actor Actor, id int) error
	Join(ctx context.Context, userID, challengeID int) error
	Leave(ctx context.Context, userID, challengeID int) error
	Delete(ctx context.Context, actor Actor, id int) error
	Progress(ctx context.Context, viewer *Actor, id int, asOf time.Time) (*ChallengeProgress, error)
}

type challengeService struct {
	tx              Transactor
	challengeRepo   repositories.ChallengeRepository
	participantRepo repositories.ParticipantRepository
	positionRepo    repositories.PositionRepository
	commentRepo     repositories.CommentRepository
	eligibility     EligibilityFilter
	positions       PositionService
	logger          *zap.Logger
}

func NewChallengeService(
	tx Transactor,
	challengeRepo repositories.ChallengeRepository,
	participantRepo repositories.ParticipantRepository,
	positionRepo repositories.PositionRepository,
	commentRepo repositories.CommentRepository,
	eligibility EligibilityFilter,
	positions PositionService,
	logger *zap.Logger,
) ChallengeService {
	return &challengeService{
		tx:              tx,
		challengeRepo:   challengeRepo,
		participantRepo: participantRepo,
		positionRepo:    positionRepo,
		commentRepo:     commentRepo,
		eligibility:     eligibility,
		positions:       positions,
		logger:          logger,
	}
}

func validateChallengeInput(input CreateChallengeInput) (*models.Challenge, error) {
	v := NewValidationError()

	name := strings.TrimSpace(input.Name)
	v.Check(name != "", "name", "must be provided")
	v.Check(len(name) <= maxChallengeName, "name", fmt.Sprintf("must not be longer than %d characters", maxChallengeName))
	v.Check(input.TargetDistance > 0, "target_distance", "must be a positive number of kilometres")

	start, errStart := time.Parse(dateLayout, strings.TrimSpace(input.StartDate))
	v.Check(errStart == nil, "start_date", "must be a date in YYYY-MM-DD format")
	end, errEnd := time.Parse(dateLayout, strings.TrimSpace(input.EndDate))
	v.Check(errEnd == nil, "end_date", "must be a date in YYYY-MM-DD format")
	if errStart == nil && errEnd == nil {
		v.Check(!end.Before(start), "end_date", "must not be before start date")
	}

	typ := models.ChallengeType(strings.ToLower(strings.TrimSpace(input.Type)))
	if typ == "" {
		typ = models.ChallengeGroup
	}
	v.Check(typ.Valid(), "type", "must be either talaka or individual")

	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return &models.Challenge{
		Name:           name,
		Description:    trimmedOrNil(input.Description),
		TargetDistance: input.TargetDistance,
		StartDate:      start,
		EndDate:        end,
		Type:           typ,
		IsPrivate:      input.IsPrivate,
	}, nil
}

func (s *challengeService) Create(ctx context.Context, creatorID int, input CreateChallengeInput) (*models.Challenge, error) {
	challenge, err := validateChallengeInput(input)
	if err != nil {
		return nil, err
	}
	challenge.CreatorID = creatorID

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if err := s.challengeRepo.Create(ctx, exec, challenge); err != nil {
			return err
		}
		// The creator's earliest eligible track becomes the reference track.
		tracks, err := s.eligibility.EligibleTracks(ctx, exec, creatorID, nil)
		if err != nil {
			return err
		}
		participant := &models.ChallengeParticipant{ChallengeID: challenge.ID, UserID: creatorID}
		if len(tracks) > 0 {
			first := tracks[len(tracks)-1].ID
			participant.TrackID = &first
		}
		return s.participantRepo.Create(ctx, exec, participant)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrChallengeCreatorInvalid) || errors.Is(err, repositories.ErrParticipantUserInvalid) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}
	challenge.ParticipantCount = 1

	s.logger.Info("challenge created", zap.Int("challenge_id", challenge.ID), zap.Int("creator_id", creatorID))
	s.recompute(ctx, challenge.ID)
	return challenge, nil
}

func (s *challengeService) recompute(ctx context.Context, challengeID int) {
	if _, err := s.positions.RecomputePositions(ctx, challengeID); err != nil {
		s.logger.Error("failed to recompute positions", zap.Int("challenge_id", challengeID), zap.Error(err))
	}
}

func (s *challengeService) load(ctx context.Context, id int) (*models.Challenge, error) {
	challenge, err := s.challengeRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return challenge, nil
}

func (s *challengeService) canView(ctx context.Context, viewer *Actor, c *models.Challenge) (bool, error) {
	if !c.IsPrivate {
		return true, nil
	}
	if viewer == nil {
		return false, nil
	}
	if viewer.CanManage(c.CreatorID) {
		return true, nil
	}
	return s.participantRepo.Exists(ctx, nil, c.ID, viewer.UserID)
}

func (s *challengeService) Get(ctx context.Context, viewer *Actor, id int) (*models.Challenge, error) {
	challenge, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, viewer, challenge)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrChallengeNotFound
	}
	return challenge, nil
}

func (s *challengeService) List(ctx context.Context, viewer *Actor) ([]*models.Challenge, error) {
	all, err := s.challengeRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	joined := make(map[int]bool)
	if viewer != nil && !viewer.IsAdmin() {
		mine, err := s.challengeRepo.ListByParticipant(ctx, nil, viewer.UserID)
		if err != nil {
			return nil, err
		}
		for _, c := range mine {
			joined[c.ID] = true
		}
	}

	visible := make([]*models.Challenge, 0, len(all))
	for _, c := range all {
		if canSeeChallenge(viewer, c, joined) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

func (s *challengeService) Participants(ctx context.Context, viewer *Actor, id int) ([]*models.ChallengeParticipant, error) {
	if _, err := s.Get(ctx, viewer, id); err != nil {
		return nil, err
	}
	return s.participantRepo.ListByChallenge(ctx, nil, id)
}

func (s *challengeService) Close(ctx context.Context, actor Actor, id int) error {
	challenge, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanManage(challenge.CreatorID) {
		return ErrForbiddenOperation
	}
	return s.setClosed(ctx, id, true)
}

func (s *challengeService) Reopen(ctx context.Context, actor Actor, id int) error {
	if !actor.IsAdmin() {
		return ErrForbiddenOperation
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	return s.setClosed(ctx, id, false)
}

func (s *challengeService) setClosed(ctx context.Context, id int, closed bool) error {
	if err := s.challengeRepo.SetClosed(ctx, id, closed); err != nil {
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return ErrChallengeNotFound
		}
		return err
	}
	return nil
}

// Join is a no-op for existing participants.
func (s *challengeService) Join(ctx context.Context, userID, challengeID int) error {
	challenge, err := s.load(ctx, challengeID)
	if err != nil {
		return err
	}

	exists, err := s.participantRepo.Exists(ctx, nil, challengeID, userID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if challenge.IsClosed {
		return ErrChallengeClosed
	}

	err = s.participantRepo.Create(ctx, nil, &models.ChallengeParticipant{ChallengeID: challengeID, UserID: userID})
	switch {
	case errors.Is(err, repositories.ErrParticipantConflict):
		return nil
	case errors.Is(err, repositories.ErrParticipantChallengeInvalid):
		return ErrChallengeNotFound
	case errors.Is(err, repositories.ErrParticipantUserInvalid):
		return ErrUserNotFound
	case err != nil:
		return err
	}

	s.recompute(ctx, challengeID)
	return nil
}

func (s *challengeService) Leave(ctx context.Context, userID, challengeID int) error {
	if _, err := s.load(ctx, challengeID); err != nil {
		return err
	}
	if err := s.participantRepo.Delete(ctx, nil, challengeID, userID); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return ErrParticipantNotFound
		}
		return err
	}
	s.recompute(ctx, challengeID)
	return nil
}

// Delete keeps the rank history of the challenge but detaches it.
func (s *challengeService) Delete(ctx context.Context, actor Actor, id int) error {
	challenge, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanManage(challenge.CreatorID) {
		return ErrForbiddenOperation
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if _, err := s.challengeRepo.LockByID(ctx, exec, id); err != nil {
			return err
		}
		if err := s.positionRepo.DetachChallenge(ctx, exec, id); err != nil {
			return err
		}
		if err := s.participantRepo.DeleteByChallenge(ctx, exec, id); err != nil {
			return err
		}
		if err := s.commentRepo.DeleteByChallenge(ctx, exec, id); err != nil {
			return err
		}
		return s.challengeRepo.Delete(ctx, exec, id)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return ErrChallengeNotFound
		}
		s.logger.Error("challenge deletion rolled back", zap.Int("challenge_id", id), zap.Error(err))
		return fmt.Errorf("%w: delete challenge %d: %w", ErrPersistence, id, err)
	}

	s.logger.Info("challenge deleted", zap.Int("challenge_id", id), zap.Int("actor_id", actor.UserID))
	return nil
}

func (s *challengeService) Progress(ctx context.Context, viewer *Actor, id int, asOf time.Time) (*ChallengeProgress, error) {
	challenge, err := s.Get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	participants, err := s.participantRepo.ListByChallenge(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	ids := participantIDs(participants)

	window := challenge.Window()
	tracks, err := s.eligibility.EligibleTracksByUser(ctx, nil, ids, &window)
	if err != nil {
		return nil, err
	}
	totals := standings.Totals(ids, tracks, window)

	var total float64
	for _, v := range totals {
		total += v
	}

	today := models.DayRange(asOf.UTC())
	var todayDistance float64
	all := make([]*models.Track, 0)
	for _, userID := range ids {
		for _, t := range tracks[userID] {
			if !window.Contains(t.RecordTime) {
				continue
			}
			all = append(all, t)
			if today.Contains(t.UploadTime) {
				todayDistance += t.Distance
			}
		}
	}

	users := make(map[int]*models.User, len(participants))
	for _, p := range participants {
		users[p.UserID] = p.User
	}

	progress := &ChallengeProgress{
		ChallengeID:      challenge.ID,
		TargetDistance:   challenge.TargetDistance,
		TotalDistance:    round2(total),
		TodayDistance:    round2(todayDistance),
		DailyTotals:      standings.DailyTotals(all),
		Contributions:    make([]Contribution, 0, len(ids)),
		IdleParticipants: make([]*models.User, 0),
		ParticipantCount: len(participants),
	}
	if challenge.TargetDistance > 0 {
		progress.PercentComplete = round2(100 * total / float64(challenge.TargetDistance))
	}

	for _, st := range standings.Rank(totals) {
		login := ""
		if u := users[st.UserID]; u != nil {
			login = u.Login
		}
		if st.TotalDistance == 0 {
			progress.IdleParticipants = append(progress.IdleParticipants, &models.User{ID: st.UserID, Login: login})
			continue
		}
		c := Contribution{UserID: st.UserID, Login: login, Distance: round2(st.TotalDistance)}
		if total > 0 {
			c.Percent = round2(100 * st.TotalDistance / total)
		}
		progress.Contributions = append(progress.Contributions, c)
	}
	return progress, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Dosada05/ride-challenges/models"
	"github.com/Dosada05/ride-challenges/repositories"
)

const (
	defaultUserPageSize = 20
	maxUserPageSize     = 100
)

type UserListResponse struct {
	Users      []*models.User `json:"users"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
}

type Profile struct {
	User             *models.User      `json:"user"`
	Statistics       *UserStatistics   `json:"statistics"`
	Positions        *CurrentPositions `json:"positions"`
	StravaProfileURL *string           `json:"strava_profile_url,omitempty"`
	StravaSyncedAt   *time.Time        `json:"strava_synced_at,omitempty"`
}

// UpdateProfileInput holds the editable account fields; nil leaves a field
// as is and an empty email clears it.
type UpdateProfileInput struct {
	Login *string `json:"login"`
	Email *string `json:"email"`
}

type UserService interface {
	Get(ctx context.Context, id int) (*models.User, error)
	List(ctx context.Context, page, limit int) (UserListResponse, error)
	// Profile is built for viewer; nil is an anonymous visitor.
	Profile(ctx context.Context, viewer *Actor, id int) (*Profile, error)
	UpdateProfile(ctx context.Context, userID int, input UpdateProfileInput) (*models.User, error)
}

type userService struct {
	userRepo   repositories.UserRepository
	stravaRepo repositories.StravaRepository
	stats      StatisticsService
	positions  PositionService
}

func NewUserService(
	userRepo repositories.UserRepository,
	stravaRepo repositories.StravaRepository,
	stats StatisticsService,
	positions PositionService,
) UserService {
	return &userService{userRepo: userRepo, stravaRepo: stravaRepo, stats: stats, positions: positions}
}

func (s *userService) Get(ctx context.Context, id int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) List(ctx context.Context, page, limit int) (UserListResponse, error) {
	if limit <= 0 {
		limit = defaultUserPageSize
	}
	if limit > maxUserPageSize {
		limit = maxUserPageSize
	}
	if page <= 0 {
		page = 1
	}

	users, err := s.userRepo.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return UserListResponse{}, err
	}
	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return UserListResponse{}, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return UserListResponse{Users: users, TotalCount: total, Page: page, Limit: limit}, nil
}

// Profile is the public view of a user; email is not exposed.
func (s *userService) Profile(ctx context.Context, viewer *Actor, id int) (*Profile, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Email = nil

	stats, err := s.stats.UserStatistics(ctx, id)
	if err != nil {
		return nil, err
	}
	positions, err := s.positions.CurrentPositions(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	profile := &Profile{User: user, Statistics: stats, Positions: positions}
	acc, err := s.stravaRepo.GetByUserID(ctx, id)
	switch {
	case err == nil:
		profile.StravaProfileURL = acc.ProfileURL
		profile.StravaSyncedAt = acc.LastSyncedAt
	case !errors.Is(err, repositories.ErrStravaAccountNotFound):
		return nil, err
	}
	return profile, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID int, input UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	v := NewValidationError()
	if input.Login != nil {
		login := strings.TrimSpace(*input.Login)
		if login == "" {
			v.Add("login", "must not be empty")
		} else {
			v.Check(loginPattern.MatchString(login), "login", "must be 3-32 letters, digits, dots, dashes or underscores")
		}
		user.Login = login
	}
	if input.Email != nil {
		email := trimmedOrNil(input.Email)
		if email != nil {
			_, err := mail.ParseAddress(*email)
			v.Check(err == nil, "email", "must be a valid email address")
		}
		user.Email = email
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserLoginConflict):
			return nil, ErrLoginTaken
		case errors.Is(err, repositories.ErrUserEmailConflict):
			return nil, ErrEmailTaken
		case errors.Is(err, repositories.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: update user %d: %w", ErrPersistence, userID, err)
	}
	user.PasswordHash = ""
	return user, nil
}

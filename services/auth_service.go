package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dosada05/ride-challenges/models"
	"github.com/Dosada05/ride-challenges/repositories"
)

const (
	minPasswordLength = 8
	tokenTTL          = 24 * time.Hour
)

var loginPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*models.User, string, error)
	IssueToken(user *models.User) (string, error)
}

type RegisterInput struct {
	Login    string  `json:"login"`
	Email    *string `json:"email"`
	Password string  `json:"password"`
}

type LoginInput struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type authService struct {
	userRepo  repositories.UserRepository
	jwtSecret []byte
	now       func() time.Time
}

func NewAuthService(userRepo repositories.UserRepository, jwtSecret string) AuthService {
	return &authService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	login := strings.TrimSpace(input.Login)
	email := trimmedOrNil(input.Email)

	v := NewValidationError()
	v.Check(loginPattern.MatchString(login), "login", "must be 3-32 letters, digits, dots, dashes or underscores")
	if email != nil {
		_, err := mail.ParseAddress(*email)
		v.Check(err == nil, "email", "must be a valid email address")
	}
	v.Check(len(input.Password) >= minPasswordLength, "password", fmt.Sprintf("must be at least %d characters long", minPasswordLength))
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user := &models.User{
		Login:        login,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserLoginConflict):
			return nil, ErrLoginTaken
		case errors.Is(err, repositories.ErrUserEmailConflict):
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, string, error) {
	user, err := s.userRepo.GetByLogin(ctx, strings.TrimSpace(input.Login))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to find user by login: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to compare password hash: %w", err)
	}
	user.PasswordHash = ""

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *authService) IssueToken(user *models.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role()),
		"exp":     now.Add(tokenTTL).Unix(),
		"iat":     now.Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Dosada05/ride-challenges/models"
	"github.com/Dosada05/ride-challenges/repositories"
)

const maxCommentLength = 1000

type CommentService interface {
	Add(ctx context.Context, actor Actor, challengeID int, text string) (*models.Comment, error)
	Edit(ctx context.Context, actor Actor, commentID int, text string) (*models.Comment, error)
	Delete(ctx context.Context, actor Actor, commentID int) error
	List(ctx context.Context, viewer *Actor, challengeID int) ([]*models.Comment, error)
}

type commentService struct {
	commentRepo repositories.CommentRepository
	challenges  ChallengeService
}

func NewCommentService(commentRepo repositories.CommentRepository, challenges ChallengeService) CommentService {
	return &commentService{commentRepo: commentRepo, challenges: challenges}
}

func validateCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	v := NewValidationError()
	v.Check(text != "", "text", "must be provided")
	v.Check(utf8.RuneCountInString(text) <= maxCommentLength, "text", fmt.Sprintf("must not be longer than %d characters", maxCommentLength))
	return text, v.OrNil()
}

func (s *commentService) Add(ctx context.Context, actor Actor, challengeID int, text string) (*models.Comment, error) {
	text, err := validateCommentText(text)
	if err != nil {
		return nil, err
	}
	if _, err := s.challenges.Get(ctx, &actor, challengeID); err != nil {
		return nil, err
	}

	comment := &models.Comment{UserID: actor.UserID, ChallengeID: challengeID, Text: text}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		if errors.Is(err, repositories.ErrCommentChallengeInvalid) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	return comment, nil
}

func (s *commentService) ownComment(ctx context.Context, actor Actor, commentID int) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, repositories.ErrCommentNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	if comment.UserID != actor.UserID {
		return nil, ErrForbiddenOperation
	}
	return comment, nil
}

func (s *commentService) Edit(ctx context.Context, actor Actor, commentID int, text string) (*models.Comment, error) {
	text, err := validateCommentText(text)
	if err != nil {
		return nil, err
	}
	comment, err := s.ownComment(ctx, actor, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.commentRepo.UpdateText(ctx, commentID, text); err != nil {
		if errors.Is(err, repositories.ErrCommentNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	comment.Text = text
	return comment, nil
}

func (s *commentService) Delete(ctx context.Context, actor Actor, commentID int) error {
	if _, err := s.ownComment(ctx, actor, commentID); err != nil {
		return err
	}
	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		if errors.Is(err, repositories.ErrCommentNotFound) {
			return ErrCommentNotFound
		}
		return err
	}
	return nil
}

func (s *commentService) List(ctx context.Context, viewer *Actor, challengeID int) ([]*models.Comment, error) {
	if _, err := s.challenges.Get(ctx, viewer, challengeID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByChallenge(ctx, challengeID)
}

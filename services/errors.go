package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден
	ErrNotFound            = errors.New("requested resource not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrParticipantNotFound = errors.New("user is not a participant of this challenge")
	ErrTrackNotFound       = errors.New("track not found")
	ErrCommentNotFound     = errors.New("comment not found")

	// Валидация и бизнес-правила
	ErrValidationFailed   = errors.New("validation failed")
	ErrChallengeClosed    = errors.New("challenge is closed for new participants")
	ErrAlreadyParticipant = errors.New("user already participates in this challenge")
	ErrDuplicateTrack     = errors.New("track has already been uploaded")
	ErrStravaNotConnected = errors.New("strava account is not connected")
	ErrStravaDisabled     = errors.New("strava integration is not configured")

	// Конфликты
	ErrEmailTaken = errors.New("email is already taken")
	ErrLoginTaken = errors.New("login is already taken")

	// Аутентификация и авторизация
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Инфраструктура
	ErrPersistence      = errors.New("failed to persist changes")
	ErrExternalProvider = errors.New("activity provider request failed")
)

// ValidationError carries field-level messages and matches ErrValidationFailed.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) Check(ok bool, field, message string) {
	if !ok {
		e.Add(field, message)
	}
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

func fieldError(field, message string) error {
	v := NewValidationError()
	v.Add(field, message)
	return v
}

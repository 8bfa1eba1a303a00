package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/ride-challenges/models"
)

var (
	ErrParticipantNotFound         = errors.New("participant not found")
	ErrParticipantConflict         = errors.New("participant conflict: user already joined this challenge")
	ErrParticipantChallengeInvalid = errors.New("participant challenge conflict or invalid")
	ErrParticipantUserInvalid      = errors.New("participant user conflict or invalid")
)

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.ChallengeParticipant) error
	Exists(ctx context.Context, exec SQLExecutor, challengeID, userID int) (bool, error)
	ListByChallenge(ctx context.Context, exec SQLExecutor, challengeID int) ([]*models.ChallengeParticipant, error)
	Delete(ctx context.Context, exec SQLExecutor, challengeID, userID int) error
	DeleteByChallenge(ctx context.Context, exec SQLExecutor, challengeID int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.ChallengeParticipant) error {
	query := `
		INSERT INTO challenge_participants (challenge_id, user_id, track_id)
		VALUES ($1, $2, $3)
		RETURNING id, joined_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query, p.ChallengeID, p.UserID, p.TrackID).
		Scan(&p.ID, &p.JoinedAt)
	if err != nil {
		if code, constraint, ok := pqConstraintError(err); ok {
			switch code {
			case "23505": // unique_violation
				if constraint == "challenge_participants_challenge_id_user_id_key" {
					return ErrParticipantConflict
				}
			case "23503": // foreign_key_violation
				switch constraint {
				case "challenge_participants_challenge_id_fkey":
					return ErrParticipantChallengeInvalid
				case "challenge_participants_user_id_fkey":
					return ErrParticipantUserInvalid
				}
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) Exists(ctx context.Context, exec SQLExecutor, challengeID, userID int) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2)`
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, challengeID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return exists, nil
}

// ListByChallenge returns participants ordered by user id, with login filled in.
func (r *postgresParticipantRepository) ListByChallenge(ctx context.Context, exec SQLExecutor, challengeID int) ([]*models.ChallengeParticipant, error) {
	query := `
		SELECT cp.id, cp.challenge_id, cp.user_id, cp.track_id, cp.joined_at, u.login
		FROM challenge_participants cp
		JOIN users u ON u.id = cp.user_id
		WHERE cp.challenge_id = $1
		ORDER BY cp.user_id ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	participants := make([]*models.ChallengeParticipant, 0)
	for rows.Next() {
		var p models.ChallengeParticipant
		var trackID sql.NullInt64
		var login string
		if err := rows.Scan(&p.ID, &p.ChallengeID, &p.UserID, &trackID, &p.JoinedAt, &login); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.TrackID = intPtr(trackID)
		p.User = &models.User{ID: p.UserID, Login: login}
		participants = append(participants, &p)
	}
	return participants, rows.Err()
}

func (r *postgresParticipantRepository) Delete(ctx context.Context, exec SQLExecutor, challengeID, userID int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`DELETE FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2`, challengeID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) DeleteByChallenge(ctx context.Context, exec SQLExecutor, challengeID int) error {
	_, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM challenge_participants WHERE challenge_id = $1`, challengeID)
	if err != nil {
		return fmt.Errorf("failed to delete participants of challenge %d: %w", challengeID, err)
	}
	return nil
}

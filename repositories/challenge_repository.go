package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/ride-challenges/models"
)

var (
	ErrChallengeNotFound       = errors.New("challenge not found")
	ErrChallengeCreatorInvalid = errors.New("challenge creator does not exist")
)

type ChallengeRepository interface {
	Create(ctx context.Context, exec SQLExecutor, c *models.Challenge) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Challenge, error)
	// LockByID selects the challenge row FOR UPDATE; exec must be a transaction.
	LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Challenge, error)
	List(ctx context.Context) ([]*models.Challenge, error)
	ListIDs(ctx context.Context) ([]int, error)
	ListByParticipant(ctx context.Context, exec SQLExecutor, userID int) ([]*models.Challenge, error)
	SetClosed(ctx context.Context, id int, closed bool) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	Count(ctx context.Context) (int, error)
}

type postgresChallengeRepository struct {
	db *sql.DB
}

func NewPostgresChallengeRepository(db *sql.DB) ChallengeRepository {
	return &postgresChallengeRepository{db: db}
}

func (r *postgresChallengeRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const challengeColumns = `c.id, c.name, c.description, c.target_distance, c.start_date, c.end_date,
		c.creator_id, c.type, c.is_private, c.is_closed, c.created_at`

func scanChallenge(row rowScanner, extra ...interface{}) (*models.Challenge, error) {
	var c models.Challenge
	var description sql.NullString
	dest := []interface{}{
		&c.ID, &c.Name, &description, &c.TargetDistance, &c.StartDate, &c.EndDate,
		&c.CreatorID, &c.Type, &c.IsPrivate, &c.IsClosed, &c.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	if description.Valid {
		c.Description = &description.String
	}
	return &c, nil
}

func (r *postgresChallengeRepository) Create(ctx context.Context, exec SQLExecutor, c *models.Challenge) error {
	query := `
		INSERT INTO challenges (name, description, target_distance, start_date, end_date, creator_id, type, is_private, is_closed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		c.Name, c.Description, c.TargetDistance, c.StartDate, c.EndDate,
		c.CreatorID, c.Type, c.IsPrivate, c.IsClosed,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if code, constraint, ok := pqConstraintError(err); ok && code == "23503" && constraint == "challenges_creator_id_fkey" {
			return ErrChallengeCreatorInvalid
		}
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

func (r *postgresChallengeRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `,
		       (SELECT COUNT(*) FROM challenge_participants cp WHERE cp.challenge_id = c.id)
		FROM challenges c
		WHERE c.id = $1`
	var count int
	c, err := scanChallenge(r.getExecutor(exec).QueryRowContext(ctx, query, id), &count)
	if err != nil {
		return nil, err
	}
	c.ParticipantCount = count
	return c, nil
}

func (r *postgresChallengeRepository) LockByID(ctx context.Context, exec SQLExecutor, id int) (*models.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges c WHERE c.id = $1 FOR UPDATE`
	return scanChallenge(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

// List returns the archive order: latest end date first.
func (r *postgresChallengeRepository) List(ctx context.Context) ([]*models.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `,
		       (SELECT COUNT(*) FROM challenge_participants cp WHERE cp.challenge_id = c.id)
		FROM challenges c
		ORDER BY c.end_date DESC, c.id DESC`
	return r.queryWithCount(ctx, r.db, query)
}

func (r *postgresChallengeRepository) ListByParticipant(ctx context.Context, exec SQLExecutor, userID int) ([]*models.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `,
		       (SELECT COUNT(*) FROM challenge_participants cp2 WHERE cp2.challenge_id = c.id)
		FROM challenges c
		JOIN challenge_participants cp ON cp.challenge_id = c.id
		WHERE cp.user_id = $1
		ORDER BY c.end_date DESC, c.id DESC`
	return r.queryWithCount(ctx, r.getExecutor(exec), query, userID)
}

func (r *postgresChallengeRepository) queryWithCount(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Challenge, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	challenges := make([]*models.Challenge, 0)
	for rows.Next() {
		var count int
		c, err := scanChallenge(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		c.ParticipantCount = count
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

func (r *postgresChallengeRepository) ListIDs(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM challenges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenge ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresChallengeRepository) SetClosed(ctx context.Context, id int, closed bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE challenges SET is_closed = $1 WHERE id = $2`, closed, id)
	if err != nil {
		return fmt.Errorf("failed to update challenge state: %w", err)
	}
	return checkAffectedRows(result, ErrChallengeNotFound)
}

func (r *postgresChallengeRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM challenges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	return checkAffectedRows(result, ErrChallengeNotFound)
}

func (r *postgresChallengeRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM challenges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count challenges: %w", err)
	}
	return n, nil
}

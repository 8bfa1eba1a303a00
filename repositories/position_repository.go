package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/ride-challenges/models"
)

var (
	ErrPositionNotFound    = errors.New("position snapshot not found")
	ErrPositionUserInvalid = errors.New("position snapshot user conflict or invalid")
)

// PositionRepository stores the append-only rank history. Snapshots are
// never updated; DetachChallenge is the only mutation of existing rows.
type PositionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, s *models.PositionSnapshot) error
	// LatestByChallenge returns the newest snapshot per user recorded
	// strictly before `before` (any time when nil).
	LatestByChallenge(ctx context.Context, exec SQLExecutor, challengeID int, before *time.Time) (map[int]*models.PositionSnapshot, error)
	LatestForUser(ctx context.Context, exec SQLExecutor, userID, challengeID int, before *time.Time) (*models.PositionSnapshot, error)
	ListByUserAndChallenge(ctx context.Context, exec SQLExecutor, userID, challengeID int) ([]*models.PositionSnapshot, error)
	CurrentByUser(ctx context.Context, exec SQLExecutor, userID int) ([]*models.PositionSnapshot, error)
	DetachChallenge(ctx context.Context, exec SQLExecutor, challengeID int) error
}

type postgresPositionRepository struct {
	db *sql.DB // Main DB connection, can be used if exec is nil
}

func NewPostgresPositionRepository(db *sql.DB) PositionRepository {
	return &postgresPositionRepository{db: db}
}

func (r *postgresPositionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func scanSnapshot(row rowScanner) (*models.PositionSnapshot, error) {
	var s models.PositionSnapshot
	var challengeID sql.NullInt64
	if err := row.Scan(&s.ID, &s.UserID, &challengeID, &s.RecordedAt, &s.Rank); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}
	s.ChallengeID = intPtr(challengeID)
	return &s, nil
}

func (r *postgresPositionRepository) Create(ctx context.Context, exec SQLExecutor, s *models.PositionSnapshot) error {
	query := `
		INSERT INTO position_snapshots (user_id, challenge_id, recorded_at, rank)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	err := r.getExecutor(exec).QueryRowContext(ctx, query, s.UserID, s.ChallengeID, s.RecordedAt, s.Rank).Scan(&s.ID)
	if err != nil {
		if code, constraint, ok := pqConstraintError(err); ok && code == "23503" && constraint == "position_snapshots_user_id_fkey" {
			return ErrPositionUserInvalid
		}
		return fmt.Errorf("failed to create position snapshot: %w", err)
	}
	return nil
}

func (r *postgresPositionRepository) LatestByChallenge(ctx context.Context, exec SQLExecutor, challengeID int, before *time.Time) (map[int]*models.PositionSnapshot, error) {
	var qb strings.Builder
	args := []interface{}{challengeID}
	qb.WriteString(`
		SELECT DISTINCT ON (user_id) id, user_id, challenge_id, recorded_at, rank
		FROM position_snapshots
		WHERE challenge_id = $1`)
	if before != nil {
		qb.WriteString(" AND recorded_at < $2")
		args = append(args, *before)
	}
	qb.WriteString(" ORDER BY user_id, recorded_at DESC, id DESC")

	rows, err := r.getExecutor(exec).QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshots: %w", err)
	}
	defer rows.Close()

	latest := make(map[int]*models.PositionSnapshot)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		latest[s.UserID] = s
	}
	return latest, rows.Err()
}

func (r *postgresPositionRepository) LatestForUser(ctx context.Context, exec SQLExecutor, userID, challengeID int, before *time.Time) (*models.PositionSnapshot, error) {
	var qb strings.Builder
	args := []interface{}{userID, challengeID}
	qb.WriteString(`
		SELECT id, user_id, challenge_id, recorded_at, rank
		FROM position_snapshots
		WHERE user_id = $1 AND challenge_id = $2`)
	if before != nil {
		qb.WriteString(" AND recorded_at < $3")
		args = append(args, *before)
	}
	qb.WriteString(" ORDER BY recorded_at DESC, id DESC LIMIT 1")
	return scanSnapshot(r.getExecutor(exec).QueryRowContext(ctx, qb.String(), args...))
}

func (r *postgresPositionRepository) ListByUserAndChallenge(ctx context.Context, exec SQLExecutor, userID, challengeID int) ([]*models.PositionSnapshot, error) {
	query := `
		SELECT id, user_id, challenge_id, recorded_at, rank
		FROM position_snapshots
		WHERE user_id = $1 AND challenge_id = $2
		ORDER BY recorded_at ASC, id ASC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, userID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*models.PositionSnapshot, 0)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// CurrentByUser returns the newest snapshot of each challenge the user has
// a history in, with the challenge name, creator and privacy attached.
// Detached rows are skipped.
func (r *postgresPositionRepository) CurrentByUser(ctx context.Context, exec SQLExecutor, userID int) ([]*models.PositionSnapshot, error) {
	query := `
		SELECT ps.id, ps.user_id, ps.challenge_id, ps.recorded_at, ps.rank, c.name, c.end_date, c.creator_id, c.is_private
		FROM (
			SELECT DISTINCT ON (challenge_id) id, user_id, challenge_id, recorded_at, rank
			FROM position_snapshots
			WHERE user_id = $1 AND challenge_id IS NOT NULL
			ORDER BY challenge_id, recorded_at DESC, id DESC
		) ps
		JOIN challenges c ON c.id = ps.challenge_id
		ORDER BY c.end_date DESC, ps.challenge_id DESC`
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list current positions: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*models.PositionSnapshot, 0)
	for rows.Next() {
		var s models.PositionSnapshot
		var challengeID int
		c := &models.Challenge{}
		if err := rows.Scan(&s.ID, &s.UserID, &challengeID, &s.RecordedAt, &s.Rank, &c.Name, &c.EndDate, &c.CreatorID, &c.IsPrivate); err != nil {
			return nil, fmt.Errorf("failed to scan current position: %w", err)
		}
		c.ID = challengeID
		s.ChallengeID = &challengeID
		s.Challenge = c
		snapshots = append(snapshots, &s)
	}
	return snapshots, rows.Err()
}

func (r *postgresPositionRepository) DetachChallenge(ctx context.Context, exec SQLExecutor, challengeID int) error {
	_, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE position_snapshots SET challenge_id = NULL WHERE challenge_id = $1`, challengeID)
	if err != nil {
		return fmt.Errorf("failed to detach snapshots of challenge %d: %w", challengeID, err)
	}
	return nil
}

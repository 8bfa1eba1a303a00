package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/ride-challenges/models"
)

var (
	ErrCommentNotFound         = errors.New("comment not found")
	ErrCommentChallengeInvalid = errors.New("comment challenge conflict or invalid")
)

type CommentRepository interface {
	Create(ctx context.Context, c *models.Comment) error
	GetByID(ctx context.Context, id int) (*models.Comment, error)
	ListByChallenge(ctx context.Context, challengeID int) ([]*models.Comment, error)
	UpdateText(ctx context.Context, id int, text string) error
	Delete(ctx context.Context, id int) error
	DeleteByChallenge(ctx context.Context, exec SQLExecutor, challengeID int) error
}

type postgresCommentRepository struct {
	db *sql.DB
}

func NewPostgresCommentRepository(db *sql.DB) CommentRepository {
	return &postgresCommentRepository{db: db}
}

func scanComment(row rowScanner, extra ...interface{}) (*models.Comment, error) {
	var c models.Comment
	dest := append([]interface{}{&c.ID, &c.UserID, &c.ChallengeID, &c.Text, &c.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *postgresCommentRepository) Create(ctx context.Context, c *models.Comment) error {
	query := `
		INSERT INTO comments (user_id, challenge_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, c.UserID, c.ChallengeID, c.Text).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if code, constraint, ok := pqConstraintError(err); ok && code == "23503" && constraint == "comments_challenge_id_fkey" {
			return ErrCommentChallengeInvalid
		}
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (r *postgresCommentRepository) GetByID(ctx context.Context, id int) (*models.Comment, error) {
	query := `SELECT id, user_id, challenge_id, text, created_at FROM comments WHERE id = $1`
	return scanComment(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresCommentRepository) ListByChallenge(ctx context.Context, challengeID int) ([]*models.Comment, error) {
	query := `
		SELECT c.id, c.user_id, c.challenge_id, c.text, c.created_at, u.login
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.challenge_id = $1
		ORDER BY c.created_at ASC, c.id ASC`
	rows, err := r.db.QueryContext(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]*models.Comment, 0)
	for rows.Next() {
		var login string
		c, err := scanComment(rows, &login)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.AuthorLogin = login
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *postgresCommentRepository) UpdateText(ctx context.Context, id int, text string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE comments SET text = $1 WHERE id = $2`, text, id)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return checkAffectedRows(result, ErrCommentNotFound)
}

func (r *postgresCommentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return checkAffectedRows(result, ErrCommentNotFound)
}

func (r *postgresCommentRepository) DeleteByChallenge(ctx context.Context, exec SQLExecutor, challengeID int) error {
	if exec == nil {
		exec = r.db
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM comments WHERE challenge_id = $1`, challengeID); err != nil {
		return fmt.Errorf("failed to delete comments of challenge %d: %w", challengeID, err)
	}
	return nil
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/ride-challenges/models"
)

var ErrStravaAccountNotFound = errors.New("strava account not found")

type StravaRepository interface {
	Upsert(ctx context.Context, acc *models.StravaAccount) error
	GetByUserID(ctx context.Context, userID int) (*models.StravaAccount, error)
	UpdateTokens(ctx context.Context, userID int, access, refresh string, expiresAt time.Time) error
	MarkSynced(ctx context.Context, userID int, at time.Time) error
	ListUserIDs(ctx context.Context) ([]int, error)
}

type postgresStravaRepository struct {
	db *sql.DB
}

func NewPostgresStravaRepository(db *sql.DB) StravaRepository {
	return &postgresStravaRepository{db: db}
}

func (r *postgresStravaRepository) Upsert(ctx context.Context, acc *models.StravaAccount) error {
	query := `
		INSERT INTO strava_accounts (user_id, access_token, refresh_token, token_expires_at, profile_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			profile_url = EXCLUDED.profile_url
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		acc.UserID, acc.AccessToken, acc.RefreshToken, acc.TokenExpiresAt, acc.ProfileURL,
	).Scan(&acc.ID)
	if err != nil {
		return fmt.Errorf("failed to save strava account: %w", err)
	}
	return nil
}

func (r *postgresStravaRepository) GetByUserID(ctx context.Context, userID int) (*models.StravaAccount, error) {
	query := `
		SELECT id, user_id, access_token, refresh_token, token_expires_at, profile_url, last_synced_at
		FROM strava_accounts
		WHERE user_id = $1`
	var acc models.StravaAccount
	var profileURL sql.NullString
	var lastSynced sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&acc.ID, &acc.UserID, &acc.AccessToken, &acc.RefreshToken, &acc.TokenExpiresAt, &profileURL, &lastSynced,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStravaAccountNotFound
		}
		return nil, fmt.Errorf("failed to get strava account: %w", err)
	}
	if profileURL.Valid {
		acc.ProfileURL = &profileURL.String
	}
	acc.LastSyncedAt = timePtr(lastSynced)
	return &acc, nil
}

func (r *postgresStravaRepository) UpdateTokens(ctx context.Context, userID int, access, refresh string, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE strava_accounts SET access_token = $1, refresh_token = $2, token_expires_at = $3
		WHERE user_id = $4`, access, refresh, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("failed to update strava tokens: %w", err)
	}
	return checkAffectedRows(result, ErrStravaAccountNotFound)
}

func (r *postgresStravaRepository) MarkSynced(ctx context.Context, userID int, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE strava_accounts SET last_synced_at = $1 WHERE user_id = $2`, at, userID)
	if err != nil {
		return fmt.Errorf("failed to record strava sync: %w", err)
	}
	return checkAffectedRows(result, ErrStravaAccountNotFound)
}

func (r *postgresStravaRepository) ListUserIDs(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM strava_accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list strava accounts: %w", err)
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

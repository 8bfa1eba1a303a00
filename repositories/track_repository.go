package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/ride-challenges/models"
	"github.com/lib/pq"
)

var (
	ErrTrackNotFound    = errors.New("track not found")
	ErrTrackDuplicate   = errors.New("track with this filename already exists")
	ErrTrackUserInvalid = errors.New("track owner does not exist")
)

// TrackFilter narrows track listings. Zero values mean "no restriction".
type TrackFilter struct {
	UserIDs []int
	Window  *models.DateRange
	Limit   int
}

type TrackRepository interface {
	Create(ctx context.Context, exec SQLExecutor, track *models.Track) error
	GetByID(ctx context.Context, id int) (*models.Track, error)
	ExistsByFilename(ctx context.Context, exec SQLExecutor, filename string) (bool, error)
	List(ctx context.Context, exec SQLExecutor, filter TrackFilter) ([]*models.Track, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.Track, error)
	ListOwnerIDs(ctx context.Context, exec SQLExecutor) ([]int, error)
	UpdateName(ctx context.Context, id int, name *string) error
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
	ChangeMarker(ctx context.Context) (string, error)
}

type postgresTrackRepository struct {
	db *sql.DB
}

func NewPostgresTrackRepository(db *sql.DB) TrackRepository {
	return &postgresTrackRepository{db: db}
}

func (r *postgresTrackRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const trackColumns = `t.id, t.user_id, t.filename, t.name, t.distance, t.duration_seconds, t.moving_duration_seconds,
		t.elevation_gain, t.record_time, t.upload_time, t.type, t.archive_key, t.archive_url`

func scanTrack(row rowScanner, extra ...interface{}) (*models.Track, error) {
	var t models.Track
	var name, typ, archiveKey, archiveURL sql.NullString
	dest := []interface{}{
		&t.ID, &t.UserID, &t.Filename, &name, &t.Distance, &t.Duration, &t.MovingDuration,
		&t.ElevationGain, &t.RecordTime, &t.UploadTime, &typ, &archiveKey, &archiveURL,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTrackNotFound
		}
		return nil, err
	}
	if name.Valid {
		t.Name = &name.String
	}
	if typ.Valid {
		t.Type = &typ.String
	}
	if archiveKey.Valid {
		t.ArchiveKey = &archiveKey.String
	}
	if archiveURL.Valid {
		t.ArchiveURL = &archiveURL.String
	}
	return &t, nil
}

func (r *postgresTrackRepository) Create(ctx context.Context, exec SQLExecutor, track *models.Track) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tracks (user_id, filename, name, distance, duration_seconds, moving_duration_seconds,
		                    elevation_gain, record_time, type, archive_key, archive_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, upload_time`

	err := executor.QueryRowContext(ctx, query,
		track.UserID, track.Filename, track.Name, track.Distance, track.Duration, track.MovingDuration,
		track.ElevationGain, track.RecordTime, track.Type, track.ArchiveKey, track.ArchiveURL,
	).Scan(&track.ID, &track.UploadTime)
	if err != nil {
		if code, constraint, ok := pqConstraintError(err); ok {
			switch {
			case code == "23505" && constraint == "tracks_filename_key":
				return ErrTrackDuplicate
			case code == "23503" && constraint == "tracks_user_id_fkey":
				return ErrTrackUserInvalid
			}
		}
		return fmt.Errorf("failed to create track: %w", err)
	}
	return nil
}

func (r *postgresTrackRepository) GetByID(ctx context.Context, id int) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks t WHERE t.id = $1`
	return scanTrack(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresTrackRepository) ExistsByFilename(ctx context.Context, exec SQLExecutor, filename string) (bool, error) {
	var exists bool
	err := r.getExecutor(exec).QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tracks WHERE filename = $1)`, filename).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check track filename: %w", err)
	}
	return exists, nil
}

// List returns tracks newest record first. Activity type is not filtered
// here; callers go through the eligibility filter.
func (r *postgresTrackRepository) List(ctx context.Context, exec SQLExecutor, filter TrackFilter) ([]*models.Track, error) {
	executor := r.getExecutor(exec)

	var qb strings.Builder
	args := make([]interface{}, 0, 4)
	argID := 1

	qb.WriteString(`SELECT ` + trackColumns + ` FROM tracks t WHERE 1=1`)
	if filter.UserIDs != nil {
		qb.WriteString(fmt.Sprintf(" AND t.user_id = ANY($%d)", argID))
		args = append(args, pq.Array(filter.UserIDs))
		argID++
	}
	if filter.Window != nil {
		qb.WriteString(fmt.Sprintf(" AND t.record_time >= $%d AND t.record_time < $%d", argID, argID+1))
		args = append(args, filter.Window.From, filter.Window.To)
		argID += 2
	}
	qb.WriteString(" ORDER BY t.record_time DESC, t.id DESC")
	if filter.Limit > 0 {
		qb.WriteString(fmt.Sprintf(" LIMIT $%d", argID))
		args = append(args, filter.Limit)
	}

	rows, err := executor.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]*models.Track, 0)
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

func (r *postgresTrackRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.Track, error) {
	query := `
		SELECT ` + trackColumns + `, u.login
		FROM tracks t
		JOIN users u ON u.id = t.user_id
		ORDER BY t.upload_time DESC, t.id DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list all tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]*models.Track, 0)
	for rows.Next() {
		var login string
		t, err := scanTrack(rows, &login)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		t.OwnerLogin = login
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

func (r *postgresTrackRepository) ListOwnerIDs(ctx context.Context, exec SQLExecutor) ([]int, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, `SELECT DISTINCT user_id FROM tracks ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list track owners: %w", err)
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

func (r *postgresTrackRepository) UpdateName(ctx context.Context, id int, name *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tracks SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("failed to rename track: %w", err)
	}
	return checkAffectedRows(result, ErrTrackNotFound)
}

func (r *postgresTrackRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return checkAffectedRows(result, ErrTrackNotFound)
}

func (r *postgresTrackRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}

// ChangeMarker changes whenever a track is inserted or deleted. Statistics
// caches use it as their version.
func (r *postgresTrackRepository) ChangeMarker(ctx context.Context) (string, error) {
	var count, maxID int
	var lastUpload sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(MAX(id), 0), MAX(upload_time) FROM tracks`).
		Scan(&count, &maxID, &lastUpload)
	if err != nil {
		return "", fmt.Errorf("failed to read track change marker: %w", err)
	}
	var ts int64
	if lastUpload.Valid {
		ts = lastUpload.Time.UTC().UnixNano()
	}
	return fmt.Sprintf("%d-%d-%d", count, maxID, ts), nil
}

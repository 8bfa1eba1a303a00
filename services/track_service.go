package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/Dosada05/ride-challenges/ingest"
	"github.com/Dosada05/ride-challenges/models"
	"github.com/Dosada05/ride-challenges/repositories"
	"github.com/Dosada05/ride-challenges/storage"
)

const (
	maxGPXSize      = 20 << 20
	maxTrackNameLen = 255
)

type TrackService interface {
	Upload(ctx context.Context, userID int, filename string, content io.Reader) (*models.Track, error)
	// Import stores a provider activity unless its external id is already
	// known. It does not trigger recomputation.
	Import(ctx context.Context, userID int, activity ingest.Activity) (bool, error)
	Get(ctx context.Context, trackID int) (*models.Track, error)
	ListForUser(ctx context.Context, userID, limit int) ([]*models.Track, error)
	Rename(ctx context.Context, actor Actor, trackID int, name string) (*models.Track, error)
	Delete(ctx context.Context, actor Actor, trackID int) error
	// DeleteMany removes several tracks and re-ranks each affected owner
	// once. Ids that no longer exist are skipped.
	DeleteMany(ctx context.Context, actor Actor, trackIDs []int) (int, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.Track, error)
	TracksInChallenge(ctx context.Context, challengeID, userID int) ([]*models.Track, error)
}

type trackService struct {
	trackRepo     repositories.TrackRepository
	challengeRepo repositories.ChallengeRepository
	eligibility   EligibilityFilter
	positions     PositionService
	archive       storage.Archive
	logger        *zap.Logger
}

// NewTrackService accepts a nil archive; raw files are then not kept.
func NewTrackService(
	trackRepo repositories.TrackRepository,
	challengeRepo repositories.ChallengeRepository,
	eligibility EligibilityFilter,
	positions PositionService,
	archive storage.Archive,
	logger *zap.Logger,
) TrackService {
	return &trackService{
		trackRepo:     trackRepo,
		challengeRepo: challengeRepo,
		eligibility:   eligibility,
		positions:     positions,
		archive:       archive,
		logger:        logger,
	}
}

func (s *trackService) Upload(ctx context.Context, userID int, filename string, content io.Reader) (*models.Track, error) {
	if !ingest.IsGPXFilename(filename) {
		return nil, fieldError("file", ingest.ErrUnsupportedFile.Error())
	}

	data, err := io.ReadAll(io.LimitReader(content, maxGPXSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > maxGPXSize {
		return nil, fieldError("file", fmt.Sprintf("file must not be larger than %d bytes", maxGPXSize))
	}

	activity, err := ingest.ParseGPX(bytes.NewReader(data), filename)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidGPX) || errors.Is(err, ingest.ErrNoTimedPoints) {
			return nil, fieldError("file", err.Error())
		}
		return nil, err
	}

	exists, err := s.trackRepo.ExistsByFilename(ctx, nil, activity.ExternalID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateTrack
	}

	track := activity.Track(userID)
	archived := s.archiveRaw(ctx, userID, filename, data)
	if archived != nil {
		track.ArchiveKey = &archived.Key
		track.ArchiveURL = &archived.URL
	}

	if err := s.trackRepo.Create(ctx, nil, track); err != nil {
		if archived != nil {
			s.discardArchived(archived.Key)
		}
		if errors.Is(err, repositories.ErrTrackDuplicate) {
			return nil, ErrDuplicateTrack
		}
		return nil, err
	}

	s.logger.Info("track uploaded",
		zap.Int("user_id", userID),
		zap.Int("track_id", track.ID),
		zap.Float64("distance_km", track.Distance),
	)
	s.refreshPositions(ctx, userID)
	return track, nil
}

// archiveRaw is best effort: a storage outage must not block the upload.
func (s *trackService) archiveRaw(ctx context.Context, userID int, filename string, data []byte) *storage.StoredObject {
	if s.archive == nil {
		return nil
	}
	obj, err := s.archive.Put(ctx, storage.TrackKey(userID, filename), "application/gpx+xml", bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("failed to archive gpx file", zap.Int("user_id", userID), zap.Error(err))
		return nil
	}
	return obj
}

func (s *trackService) discardArchived(key string) {
	if err := s.archive.Delete(context.Background(), key); err != nil {
		s.logger.Warn("failed to remove orphaned archive object", zap.String("key", key), zap.Error(err))
	}
}

func (s *trackService) refreshPositions(ctx context.Context, userID int) {
	if err := s.positions.RecomputeForUser(ctx, userID); err != nil {
		s.logger.Error("failed to refresh positions after track change", zap.Int("user_id", userID), zap.Error(err))
	}
}

func (s *trackService) Import(ctx context.Context, userID int, activity ingest.Activity) (bool, error) {
	exists, err := s.trackRepo.ExistsByFilename(ctx, nil, activity.ExternalID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.trackRepo.Create(ctx, nil, activity.Track(userID)); err != nil {
		if errors.Is(err, repositories.ErrTrackDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *trackService) Get(ctx context.Context, trackID int) (*models.Track, error) {
	track, err := s.trackRepo.GetByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, repositories.ErrTrackNotFound) {
			return nil, ErrTrackNotFound
		}
		return nil, err
	}
	return track, nil
}

func (s *trackService) ListForUser(ctx context.Context, userID, limit int) ([]*models.Track, error) {
	tracks, err := s.eligibility.EligibleTracks(ctx, nil, userID, nil)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

func (s *trackService) Rename(ctx context.Context, actor Actor, trackID int, name string) (*models.Track, error) {
	track, err := s.Get(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if track.UserID != actor.UserID {
		return nil, ErrForbiddenOperation
	}

	name = strings.TrimSpace(name)
	if len(name) > maxTrackNameLen {
		return nil, fieldError("name", fmt.Sprintf("must not be longer than %d characters", maxTrackNameLen))
	}
	newName := trimmedOrNil(&name)
	if err := s.trackRepo.UpdateName(ctx, trackID, newName); err != nil {
		if errors.Is(err, repositories.ErrTrackNotFound) {
			return nil, ErrTrackNotFound
		}
		return nil, err
	}
	track.Name = newName
	return track, nil
}

func (s *trackService) Delete(ctx context.Context, actor Actor, trackID int) error {
	track, err := s.Get(ctx, trackID)
	if err != nil {
		return err
	}
	if !actor.CanManage(track.UserID) {
		return ErrForbiddenOperation
	}
	if err := s.trackRepo.Delete(ctx, trackID); err != nil {
		if errors.Is(err, repositories.ErrTrackNotFound) {
			return ErrTrackNotFound
		}
		return err
	}
	if track.ArchiveKey != nil && s.archive != nil {
		if err := s.archive.Delete(ctx, *track.ArchiveKey); err != nil {
			s.logger.Warn("failed to delete archived gpx", zap.Int("track_id", trackID), zap.Error(err))
		}
	}
	s.refreshPositions(ctx, track.UserID)
	return nil
}

func (s *trackService) DeleteMany(ctx context.Context, actor Actor, trackIDs []int) (int, error) {
	tracks := make([]*models.Track, 0, len(trackIDs))
	seen := make(map[int]bool, len(trackIDs))
	for _, id := range trackIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		track, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrTrackNotFound) {
				continue
			}
			return 0, err
		}
		if !actor.CanManage(track.UserID) {
			return 0, ErrForbiddenOperation
		}
		tracks = append(tracks, track)
	}

	deleted := 0
	owners := make([]int, 0)
	touched := make(map[int]bool)
	for _, track := range tracks {
		if err := s.trackRepo.Delete(ctx, track.ID); err != nil {
			if errors.Is(err, repositories.ErrTrackNotFound) {
				continue
			}
			s.refreshOwners(ctx, owners)
			return deleted, err
		}
		deleted++
		if track.ArchiveKey != nil && s.archive != nil {
			if err := s.archive.Delete(ctx, *track.ArchiveKey); err != nil {
				s.logger.Warn("failed to delete archived gpx", zap.Int("track_id", track.ID), zap.Error(err))
			}
		}
		if !touched[track.UserID] {
			touched[track.UserID] = true
			owners = append(owners, track.UserID)
		}
	}
	s.refreshOwners(ctx, owners)
	return deleted, nil
}

func (s *trackService) refreshOwners(ctx context.Context, userIDs []int) {
	for _, id := range userIDs {
		s.refreshPositions(ctx, id)
	}
}

func (s *trackService) ListAll(ctx context.Context, limit, offset int) ([]*models.Track, error) {
	return s.trackRepo.ListAll(ctx, limit, offset)
}

// TracksInChallenge lists the eligible tracks of one user inside the
// challenge window.
func (s *trackService) TracksInChallenge(ctx context.Context, challengeID, userID int) ([]*models.Track, error) {
	challenge, err := s.challengeRepo.GetByID(ctx, nil, challengeID)
	if err != nil {
		if errors.Is(err, repositories.ErrChallengeNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}
	window := challenge.Window()
	return s.eligibility.EligibleTracks(ctx, nil, userID, &window)
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Dosada05/ride-challenges/middleware"
	"github.com/Dosada05/ride-challenges/services"
)

const (
	maxUploadBytes    = 21 << 20
	defaultTrackLimit = 50
)

type TrackHandler struct {
	trackService services.TrackService
}

func NewTrackHandler(ts services.TrackService) *TrackHandler {
	return &TrackHandler{trackService: ts}
}

// Upload обрабатывает POST /tracks (multipart, поле "file")
func (h *TrackHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to upload tracks")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		badRequestResponse(w, r, fmt.Errorf("failed to parse multipart form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequestResponse(w, r, fmt.Errorf("failed to get track file from form: %w", err))
		return
	}
	defer file.Close()

	track, err := h.trackService.Upload(r.Context(), userID, header.Filename, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"track": track}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMine обрабатывает GET /tracks
func (h *TrackHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	h.list(w, r, userID)
}

// ListForUser обрабатывает GET /users/{userID}/tracks
func (h *TrackHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.list(w, r, userID)
}

func (h *TrackHandler) list(w http.ResponseWriter, r *http.Request, userID int) {
	limit, err := queryInt(r, "limit", defaultTrackLimit, 1)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tracks, err := h.trackService.ListForUser(r.Context(), userID, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tracks": tracks}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Get обрабатывает GET /tracks/{trackID}
func (h *TrackHandler) Get(w http.ResponseWriter, r *http.Request) {
	trackID, err := getIDFromURL(r, "trackID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	track, err := h.trackService.Get(r.Context(), trackID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"track": track}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Rename обрабатывает PATCH /tracks/{trackID}
func (h *TrackHandler) Rename(w http.ResponseWriter, r *http.Request) {
	trackID, err := getIDFromURL(r, "trackID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to rename tracks")
		return
	}

	var input struct {
		Name *string `json:"name"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Name == nil {
		failedValidationResponse(w, r, map[string]string{"name": "must be provided"})
		return
	}

	track, err := h.trackService.Rename(r.Context(), actor, trackID, *input.Name)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"track": track}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Delete обрабатывает DELETE /tracks/{trackID}
func (h *TrackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	trackID, err := getIDFromURL(r, "trackID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to delete tracks")
		return
	}

	if err := h.trackService.Delete(r.Context(), actor, trackID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminList обрабатывает GET /admin/tracks
func (h *TrackHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultTrackLimit, 1)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0, 0)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if limit > 500 {
		badRequestResponse(w, r, errors.New("limit must not exceed 500"))
		return
	}

	tracks, err := h.trackService.ListAll(r.Context(), limit, offset)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tracks": tracks, "limit": limit, "offset": offset}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AdminDelete обрабатывает POST /admin/tracks/delete
func (h *TrackHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to delete tracks")
		return
	}

	var input struct {
		IDs []int `json:"ids"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if len(input.IDs) == 0 {
		failedValidationResponse(w, r, map[string]string{"ids": "must contain at least one track id"})
		return
	}

	deleted, err := h.trackService.DeleteMany(r.Context(), actor, input.IDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"deleted": deleted}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

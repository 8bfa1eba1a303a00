package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Dosada05/ride-challenges/middleware"
	"github.com/Dosada05/ride-challenges/services"
)

type ChallengeHandler struct {
	challengeService services.ChallengeService
	positionService  services.PositionService
	trackService     services.TrackService
	now              func() time.Time
}

func NewChallengeHandler(cs services.ChallengeService, ps services.PositionService, ts services.TrackService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: cs,
		positionService:  ps,
		trackService:     ts,
		now:              time.Now,
	}
}

// Create обрабатывает POST /challenges
func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create challenge")
		return
	}

	var input services.CreateChallengeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	challenge, err := h.challengeService.Create(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"challenge": challenge}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// List обрабатывает GET /challenges
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.challengeService.List(r.Context(), viewerFromRequest(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"challenges": challenges}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Get обрабатывает GET /challenges/{challengeID}
func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "challengeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	challenge, err := h.challengeService.Get(r.Context(), viewerFromRequest(r), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"challenge": challenge}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Participants обрабатывает GET /challenges/{challengeID}/participants
func (h *ChallengeHandler) Participants(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "challengeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participants, err := h.challengeService.Participants(r.Context(), viewerFromRequest(r), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participants": participants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Standings обрабатывает GET /challenges/{challengeID}/standings
func (h *ChallengeHandler) Standings(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "challengeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if _, err := h.challengeService.Get(r.Context(), viewerFromRequest(r), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	ranked, err := h.positionService.RankedParticipants(r.Context(), id, h.now())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": ranked}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Progress обрабатывает GET /challenges/{challengeID}/progress
func (h *ChallengeHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "challengeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	progress, err := h.challengeService.Progress(r.Context(), viewerFromRequest(r), id, h.now())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"progress": progress}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ParticipantTracks обрабатывает GET /challenges/{challengeID}/participants/{userID}/tracks
func (h *ChallengeHandler) ParticipantTracks(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "challengeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if _, err := h.challengeService.Get(r.Context(), viewerFromRequest(r), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	tracks, err := h.trackService.TracksInChallenge(r.Context(), id, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tracks": tracks}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Join обрабатывает POST /challenges/{challengeID}/join
func (h *ChallengeHandler) Join(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.challengeService.Join)
}

// Leave обрабатывает POST /challenges/{challengeID}/leave
func (h *ChallengeHandler) Leave(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.challengeService.Leave)
}

func (h *ChallengeHandler) membership(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, userID, challengeID int) error) {
	id, err := getIDFromURL(r, "challengeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := apply(r.Context(), userID, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Close обрабатывает POST /challenges/{challengeID}/close
func (h *ChallengeHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.manage(w, r, h.challengeService.Close)
}

// Reopen обрабатывает POST /challenges/{challengeID}/reopen
func (h *ChallengeHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.manage(w, r, h.challengeService.Reopen)
}

// Delete обрабатывает DELETE /challenges/{challengeID}
func (h *ChallengeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.manage(w, r, h.challengeService.Delete)
}

func (h *ChallengeHandler) manage(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, actor services.Actor, id int) error) {
	id, err := getIDFromURL(r, "challengeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	actor, err := actorFromRequest(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := apply(r.Context(), actor, id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

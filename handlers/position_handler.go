package handlers

import (
	"net/http"
	"time"

	"github.com/Dosada05/ride-challenges/services"
)

type PositionHandler struct {
	positionService  services.PositionService
	challengeService services.ChallengeService
	now              func() time.Time
}

func NewPositionHandler(ps services.PositionService, cs services.ChallengeService) *PositionHandler {
	return &PositionHandler{positionService: ps, challengeService: cs, now: time.Now}
}

// visibleIDs читает challengeID и userID, проверяя видимость челленджа.
func (h *PositionHandler) visibleIDs(w http.ResponseWriter, r *http.Request) (challengeID, userID int, ok bool) {
	challengeID, err := getIDFromURL(r, "challengeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, 0, false
	}
	userID, err = getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, 0, false
	}
	if _, err := h.challengeService.Get(r.Context(), viewerFromRequest(r), challengeID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return 0, 0, false
	}
	return challengeID, userID, true
}

// History обрабатывает GET /challenges/{challengeID}/positions/{userID}
func (h *PositionHandler) History(w http.ResponseWriter, r *http.Request) {
	challengeID, userID, ok := h.visibleIDs(w, r)
	if !ok {
		return
	}

	history, err := h.positionService.PositionHistory(r.Context(), userID, challengeID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"history": history}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// TimeSeries обрабатывает GET /challenges/{challengeID}/positions/{userID}/timeseries
func (h *PositionHandler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	challengeID, userID, ok := h.visibleIDs(w, r)
	if !ok {
		return
	}

	series, err := h.positionService.PositionTimeSeries(r.Context(), userID, challengeID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"timeseries": series}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DailyDelta обрабатывает GET /challenges/{challengeID}/positions/{userID}/delta
func (h *PositionHandler) DailyDelta(w http.ResponseWriter, r *http.Request) {
	challengeID, userID, ok := h.visibleIDs(w, r)
	if !ok {
		return
	}

	delta, err := h.positionService.DailyRankDelta(r.Context(), userID, challengeID, h.now())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"delta": delta}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Current обрабатывает GET /users/{userID}/positions
func (h *PositionHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	positions, err := h.positionService.CurrentPositions(r.Context(), viewerFromRequest(r), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"positions": positions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

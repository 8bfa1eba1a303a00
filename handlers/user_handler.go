package handlers

import (
	"net/http"

	"github.com/Dosada05/ride-challenges/middleware"
	"github.com/Dosada05/ride-challenges/services"
)

type UserHandler struct {
	userService  services.UserService
	statsService services.StatisticsService
}

func NewUserHandler(us services.UserService, ss services.StatisticsService) *UserHandler {
	return &UserHandler{userService: us, statsService: ss}
}

// Me обрабатывает GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"user": user}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateMe обрабатывает PATCH /users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input services.UpdateProfileInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Login == nil && input.Email == nil {
		failedValidationResponse(w, r, map[string]string{"login": "login or email must be provided"})
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"user": user}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Profile обрабатывает GET /users/{userID}
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	profile, err := h.userService.Profile(r.Context(), viewerFromRequest(r), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"profile": profile}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Statistics обрабатывает GET /users/{userID}/statistics
func (h *UserHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if _, err := h.userService.Get(r.Context(), userID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	stats, err := h.statsService.UserStatistics(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"statistics": stats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SiteStatistics обрабатывает GET /statistics
func (h *UserHandler) SiteStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.SiteStatistics(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"statistics": stats}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AdminList обрабатывает GET /admin/users
func (h *UserHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1, 1)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0, 1)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	list, err := h.userService.List(r.Context(), page, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, list, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

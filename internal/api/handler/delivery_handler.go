package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerdherd/push-relay/internal/domain"
	"github.com/nerdherd/push-relay/internal/repository"
)

// DeliveryHandler exposes the delivery audit trail.
type DeliveryHandler struct {
	repo repository.DeliveryRepository
}

func NewDeliveryHandler(repo repository.DeliveryRepository) *DeliveryHandler {
	return &DeliveryHandler{repo: repo}
}

// ListByUser handles GET /api/v1/users/{userID}/deliveries
//
// @Summary  Recent delivery attempts for a user, newest first
// @Tags     push
// @Produce  json
// @Param    userID  path      string  true   "User ID"
// @Param    limit   query     int     false  "Items to return (default 20, max 100)"
// @Success  200     {object}  map[string]any
// @Router   /api/v1/users/{userID}/deliveries [get]
func (h *DeliveryHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit := 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	records, err := h.repo.ListByUser(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	if records == nil {
		records = []*domain.DeliveryRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"limit": limit,
	})
}

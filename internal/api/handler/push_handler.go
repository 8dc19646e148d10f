package handler

import (
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/nerdherd/push-relay/internal/api/middleware"
	"github.com/nerdherd/push-relay/internal/domain"
	"github.com/nerdherd/push-relay/internal/service"
)

// PushHandler accepts push triggers from direct calls and database webhooks.
type PushHandler struct {
	svc    *service.PushService
	logger *zap.Logger
}

func NewPushHandler(svc *service.PushService, logger *zap.Logger) *PushHandler {
	return &PushHandler{svc: svc, logger: logger}
}

// Push handles POST /push and POST /api/v1/push
//
// @Summary     Deliver a push notification to a user's device
// @Tags        push
// @Accept      json
// @Produce     json
// @Param       body  body      object             true  "Direct or record envelope"
// @Success     200   {object}  map[string]any     "FCM response, relayed verbatim"
// @Failure     400   {object}  map[string]string
// @Failure     500   {object}  map[string]string
// @Router      /push [post]
func (h *PushHandler) Push(w http.ResponseWriter, r *http.Request) {
	req, err := domain.DecodePushRequest(r.Body)
	if err != nil {
		mapError(w, err)
		return
	}
	req.CorrelationID = apimw.GetCorrelationID(r.Context())

	res, err := h.svc.Push(r.Context(), req)
	if err != nil {
		mapError(w, err)
		return
	}

	switch res.Stage {
	case service.StageTargetAbsent:
		respondJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "No FCM token",
		})
	case service.StageDelivered:
		relay(w, res.Outcome)
	default:
		h.logger.Error("push ended in unexpected stage",
			zap.String("stage", string(res.Stage)),
			zap.String("correlation_id", req.CorrelationID),
		)
		respondError(w, http.StatusInternalServerError, "push ended in stage "+string(res.Stage))
	}
}

// relay writes the backend's status, content type and body without
// interpretation.
func relay(w http.ResponseWriter, out *domain.DeliveryOutcome) {
	if out.ContentType != "" {
		w.Header().Set("Content-Type", out.ContentType)
	}
	w.WriteHeader(out.StatusCode)
	_, _ = w.Write([]byte(out.Body))
}

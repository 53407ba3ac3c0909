package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/arc-self/access-core/internal/apperror"
	"github.com/arc-self/access-core/internal/callback"
	"github.com/arc-self/access-core/internal/domain"
	"github.com/arc-self/access-core/internal/platform/middleware"
)

// CallbackHandler exposes the command callback state machine over HTTP.
type CallbackHandler struct {
	service *callback.Service
}

// NewCallbackHandler builds a CallbackHandler over svc.
func NewCallbackHandler(svc *callback.Service) *CallbackHandler {
	return &CallbackHandler{service: svc}
}

// outcomeRequest is the wire shape for POST
// /organizations/{orgId}/commands/{commandId}/outcome (spec §6).
type outcomeRequest struct {
	State               string     `json:"state"`
	ErrorCode           *string    `json:"errorCode,omitempty"`
	Detail              *string    `json:"detail,omitempty"`
	OccurredAt          *time.Time `json:"occurredAt,omitempty"`
	ExternalExecutionID *string    `json:"externalExecutionId,omitempty"`
}

// ApplyOutcome handles POST /organizations/{orgId}/commands/{commandId}/outcome.
func (h *CallbackHandler) ApplyOutcome(c echo.Context) error {
	orgID, ok := middleware.GetOrgID(c.Request().Context())
	if !ok {
		return apperror.WriteHTTP(c, apperror.Internal("tenant scope middleware did not run", nil))
	}
	commandID := c.Param("commandId")
	if commandID == "" {
		return apperror.WriteHTTP(c, apperror.Validation("commandId path parameter is required"))
	}

	var req outcomeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.WriteHTTP(c, apperror.Validation("malformed request body"))
	}

	_, err := h.service.Apply(c.Request().Context(), orgID, commandID, callback.Outcome{
		State:               domain.CommandState(req.State),
		ErrorCode:           req.ErrorCode,
		Detail:              req.Detail,
		OccurredAt:          req.OccurredAt,
		ExternalExecutionID: req.ExternalExecutionID,
	})
	if err != nil {
		return apperror.WriteHTTP(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

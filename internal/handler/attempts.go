// Package handler wires the echo HTTP surface onto the access pipeline
// and callback service (spec §6 External interfaces).
package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/arc-self/access-core/internal/access"
	"github.com/arc-self/access-core/internal/apperror"
	"github.com/arc-self/access-core/internal/domain"
	"github.com/arc-self/access-core/internal/platform/middleware"
)

// AttemptHandler exposes the access pipeline over HTTP.
type AttemptHandler struct {
	service *access.Service
}

// NewAttemptHandler builds an AttemptHandler over svc.
func NewAttemptHandler(svc *access.Service) *AttemptHandler {
	return &AttemptHandler{service: svc}
}

// registerAttemptRequest is the wire shape for POST
// /organizations/{orgId}/attempts (spec §6).
type registerAttemptRequest struct {
	DeviceID         string          `json:"deviceId"`
	AreaID           string          `json:"areaId"`
	Direction        string          `json:"direction"`
	AuthMethod       string          `json:"authMethod"`
	CredentialRef    *string         `json:"credentialRef,omitempty"`
	RawPayload       json.RawMessage `json:"rawPayload,omitempty"`
	IdempotencyKey   string          `json:"idempotencyKey"`
	GatewayRequestID *string         `json:"gatewayRequestId,omitempty"`
	OccurredAt       *time.Time      `json:"occurredAt,omitempty"`
}

type attemptResultResponse struct {
	AttemptID      string  `json:"attemptId"`
	DecisionResult string  `json:"decisionResult"`
	DecisionID     string  `json:"decisionId"`
	CommandID      *string `json:"commandId,omitempty"`
	CommandType    *string `json:"commandType,omitempty"`
	CommandState   *string `json:"commandState,omitempty"`
}

// Register handles POST /organizations/{orgId}/attempts.
func (h *AttemptHandler) Register(c echo.Context) error {
	orgID, ok := middleware.GetOrgID(c.Request().Context())
	if !ok {
		return apperror.WriteHTTP(c, apperror.Internal("tenant scope middleware did not run", nil))
	}

	var req registerAttemptRequest
	if err := c.Bind(&req); err != nil {
		return apperror.WriteHTTP(c, apperror.Validation("malformed request body"))
	}
	if strings.TrimSpace(req.DeviceID) == "" || strings.TrimSpace(req.AreaID) == "" {
		return apperror.WriteHTTP(c, apperror.Validation("deviceId and areaId are required"))
	}

	result, err := h.service.Register(c.Request().Context(), orgID, access.Request{
		DeviceID:         req.DeviceID,
		AreaID:           req.AreaID,
		Direction:        domain.Direction(req.Direction),
		AuthMethod:       domain.AuthMethod(req.AuthMethod),
		CredentialRef:    req.CredentialRef,
		RawPayload:       []byte(req.RawPayload),
		IdempotencyKey:   req.IdempotencyKey,
		GatewayRequestID: req.GatewayRequestID,
		OccurredAt:       req.OccurredAt,
	})
	if err != nil {
		return apperror.WriteHTTP(c, err)
	}

	resp := attemptResultResponse{
		AttemptID:      result.AttemptID,
		DecisionResult: string(result.DecisionResult),
		DecisionID:     result.DecisionID,
	}
	if result.CommandID != nil {
		resp.CommandID = result.CommandID
		t := string(*result.CommandType)
		st := string(*result.CommandState)
		resp.CommandType = &t
		resp.CommandState = &st
	}
	return c.JSON(http.StatusOK, resp)
}

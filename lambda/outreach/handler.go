package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog"

	"github.com/outreachbackend/internal/idempotency"
	"github.com/outreachbackend/internal/models"
)

const (
	ActionProcessOutreach    = "process_outreach"
	ActionGetStats           = "get_stats"
	ActionGenerateIcebreaker = "generate_icebreaker"
)

// OutreachRequest is the API Gateway request body.
type OutreachRequest struct {
	Action         string          `json:"action"`
	Profile        *models.Profile `json:"profile,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Code      string    `json:"code,omitempty"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IcebreakerData is the generate_icebreaker payload.
type IcebreakerData struct {
	ProfileID  string  `json:"profile_id"`
	Icebreaker string  `json:"icebreaker"`
	Cost       float64 `json:"cost"`
	TokensUsed int     `json:"tokens_used"`
	Cached     bool    `json:"cached"`
}

type outreachService interface {
	GenerateIcebreaker(ctx context.Context, profile models.Profile) (models.IcebreakerResult, error)
	ProcessOutreach(ctx context.Context, profile models.Profile) models.OutreachOutcome
	GetDailyStats(ctx context.Context) (models.DailyStats, error)
}

type idempotencyService interface {
	Process(ctx context.Context, clientKey, action string, body []byte, handler func(context.Context) (any, error)) (json.RawMessage, error)
}

type Handler struct {
	outreach    outreachService
	idempotency idempotencyService
	validator   *profileValidator
	log         zerolog.Logger
	now         func() time.Time
}

func NewHandler(svc outreachService, idem idempotencyService, log zerolog.Logger) *Handler {
	return &Handler{
		outreach:    svc,
		idempotency: idem,
		validator:   newProfileValidator(),
		log:         log,
		now:         time.Now,
	}
}

func (h *Handler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	log := h.log
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		log = log.With().Str("request_id", lc.AwsRequestID).Logger()
	}
	ctx = log.WithContext(ctx)

	var req OutreachRequest
	if strings.TrimSpace(request.Body) != "" {
		if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
			return h.errorResponse(http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON in request body", err.Error()), nil
		}
	}
	if req.Action == "" {
		req.Action = ActionProcessOutreach
	}
	log = log.With().Str("action", req.Action).Logger()

	switch req.Action {
	case ActionGetStats:
		stats, err := h.outreach.GetDailyStats(ctx)
		if err != nil {
			log.Error().Err(err).Msg("error getting daily stats")
			return h.errorResponse(http.StatusInternalServerError, "STATS_ERROR", err.Error(), ""), nil
		}
		return h.success(stats), nil

	case ActionGenerateIcebreaker:
		profile, resp, ok := h.profile(req)
		if !ok {
			return resp, nil
		}
		result, err := h.outreach.GenerateIcebreaker(ctx, profile)
		if err != nil {
			log.Error().Err(err).Msg("error generating icebreaker")
			return h.errorResponse(http.StatusInternalServerError, "GENERATION_ERROR", err.Error(), ""), nil
		}
		return h.success(IcebreakerData{
			ProfileID:  result.ProfileID,
			Icebreaker: result.Icebreaker,
			Cost:       result.Cost,
			TokensUsed: result.TokensUsed,
			Cached:     result.Cached,
		}), nil

	case ActionProcessOutreach:
		profile, resp, ok := h.profile(req)
		if !ok {
			return resp, nil
		}
		if req.IdempotencyKey == "" || h.idempotency == nil {
			return h.success(h.outreach.ProcessOutreach(ctx, profile)), nil
		}

		// only a completed outreach is replayed; declines and failures run again
		run := func(ctx context.Context) (any, error) {
			outcome := h.outreach.ProcessOutreach(ctx, profile)
			if !outcome.Success {
				return nil, idempotency.Retryable(outcome)
			}
			return outcome, nil
		}

		data, err := h.idempotency.Process(ctx, req.IdempotencyKey, req.Action, []byte(request.Body), run)
		switch {
		case errors.Is(err, idempotency.ErrConflict):
			return h.errorResponse(http.StatusConflict, "IDEMPOTENCY_CONFLICT", err.Error(), ""), nil
		case errors.Is(err, idempotency.ErrInProgress):
			return h.errorResponse(http.StatusConflict, "REQUEST_IN_PROGRESS", err.Error(), ""), nil
		case err != nil:
			log.Error().Err(err).Msg("idempotent request failed")
			return h.errorResponse(http.StatusInternalServerError, "PROCESSING_ERROR", "Failed to process outreach", err.Error()), nil
		}
		return h.success(data), nil
	}

	return h.errorResponse(http.StatusBadRequest, "UNKNOWN_ACTION", "Unknown action: "+req.Action, ""), nil
}

func (h *Handler) profile(req OutreachRequest) (models.Profile, events.APIGatewayProxyResponse, bool) {
	var p models.Profile
	if req.Profile != nil {
		p = *req.Profile
	}
	if err := h.validator.Check(p); err != nil {
		return p, h.errorResponse(http.StatusBadRequest, "VALIDATION_ERROR", "Invalid profile", err.Error()), false
	}
	return p, events.APIGatewayProxyResponse{}, true
}

func (h *Handler) success(data any) events.APIGatewayProxyResponse {
	return h.respond(http.StatusOK, Response{Success: true, Data: data, Timestamp: h.now().UTC()})
}

func (h *Handler) errorResponse(statusCode int, code, message, details string) events.APIGatewayProxyResponse {
	return h.respond(statusCode, Response{
		Error:     message,
		Code:      code,
		Details:   details,
		Timestamp: h.now().UTC(),
	})
}

func (h *Handler) respond(statusCode int, body Response) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to serialize response")
		statusCode = http.StatusInternalServerError
		raw = []byte(`{"success":false,"error":"Failed to serialize response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(raw),
	}
}

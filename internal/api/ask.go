package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/supplysql/supplysql/internal/agent"
	"github.com/supplysql/supplysql/internal/database"
	"github.com/supplysql/supplysql/internal/examples"
	"github.com/supplysql/supplysql/internal/llm"
	"github.com/supplysql/supplysql/internal/observability"
	"github.com/supplysql/supplysql/internal/prompt"
)

type askRequest struct {
	Question     string `json:"question"`
	IncludeTrace bool   `json:"include_trace"`
}

type askResponse struct {
	Answer   string       `json:"answer"`
	Strategy string       `json:"strategy"`
	Turns    int          `json:"turns"`
	TraceID  string       `json:"trace_id"`
	Trace    []agent.Turn `json:"trace,omitempty"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	service, ok := resolveAssistant(deps, w, r)
	if !ok {
		return
	}
	answer, err := service.Ask(r.Context(), request.Question)
	if err != nil {
		if deps.Logger != nil {
			deps.Logger.WarnContext(r.Context(), "ask failed",
				slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
				slog.Any("error", err),
			)
		}
		writeAskError(r.Context(), w, err)
		return
	}

	response := askResponse{
		Answer:   answer.Text,
		Strategy: answer.Strategy,
		Turns:    answer.ModelCalls,
		TraceID:  observability.TraceIDFromContext(r.Context()),
	}
	if request.IncludeTrace {
		response.Trace = answer.Turns
	}
	writeJSON(w, http.StatusOK, response)
}

func resolveAssistant(deps Dependencies, w http.ResponseWriter, r *http.Request) (Assistant, bool) {
	if deps.Assistant == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASSISTANT_NOT_CONFIGURED", "assistant is not configured", false, nil)
		return nil, false
	}
	service, err := deps.Assistant(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
		return nil, false
	}
	return service, true
}

// writeAskError maps a failed run onto the error envelope. Upstream status
// codes are passed through in context.
func writeAskError(ctx context.Context, w http.ResponseWriter, err error) {
	var upstream *llm.UpstreamError
	switch {
	case errors.Is(err, prompt.ErrEmptyQuestion):
		writeError(ctx, w, http.StatusBadRequest, "QUESTION_REQUIRED", err.Error(), false, nil)
	case errors.Is(err, agent.ErrTurnBudgetExceeded):
		writeError(ctx, w, http.StatusUnprocessableEntity, "TURN_BUDGET_EXCEEDED", err.Error(), false, nil)
	case errors.Is(err, agent.ErrMalformedModelOutput):
		writeError(ctx, w, http.StatusBadGateway, "MALFORMED_MODEL_OUTPUT", err.Error(), true, nil)
	case errors.Is(err, agent.ErrUnknownTool):
		writeError(ctx, w, http.StatusBadGateway, "UNKNOWN_TOOL", err.Error(), false, nil)
	case errors.Is(err, examples.ErrRetrievalUnavailable):
		writeError(ctx, w, http.StatusServiceUnavailable, "RETRIEVAL_UNAVAILABLE", err.Error(), true, nil)
	case errors.As(err, &upstream):
		status := http.StatusBadGateway
		if upstream.Retryable {
			status = http.StatusServiceUnavailable
		}
		writeError(ctx, w, status, "UPSTREAM_ERROR", err.Error(), upstream.Retryable, map[string]any{
			"op":          upstream.Op,
			"status_code": upstream.StatusCode,
		})
	case errors.Is(err, llm.ErrUpstream):
		writeError(ctx, w, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error(), false, nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, w, http.StatusGatewayTimeout, "TIMEOUT", err.Error(), true, nil)
	case errors.Is(err, context.Canceled):
		writeError(ctx, w, http.StatusRequestTimeout, "REQUEST_CANCELLED", err.Error(), true, nil)
	case errors.Is(err, database.ErrDatabase):
		writeError(ctx, w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error(), false, nil)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), false, nil)
	}
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"qa-chatbot/internal/domain"
	"qa-chatbot/internal/usecase"
)

// UseCase is the session & archive manager surface the handler routes to.
type UseCase interface {
	Send(ctx context.Context, sess *domain.Session, prompt, model string) (string, error)
	SaveSession(ctx context.Context, sess *domain.Session) (string, error)
	ListArchives(ctx context.Context, limit int) ([]domain.ArchiveSummary, error)
	LoadArchive(ctx context.Context, id string) (*domain.Session, error)
	ClearSession(sess *domain.Session)
	NewChat(ctx context.Context, sess *domain.Session) (string, error)
}

type chatRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

type chatResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"sessionId"`
	Turns     int    `json:"turns"`
}

type saveResponse struct {
	ArchiveID string `json:"archiveId"`
}

type archiveSummary struct {
	ID        string `json:"id"`
	TurnCount int    `json:"turnCount"`
}

type listResponse struct {
	Archives []archiveSummary `json:"archives"`
}

type sessionResponse struct {
	SessionID string        `json:"sessionId"`
	Messages  []domain.Turn `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler routes API Gateway events to the manager. It also owns the live
// session on behalf of the single-page frontend; Lambda containers process
// one event at a time, so the session needs no locking.
type Handler struct {
	uc           UseCase
	defaultModel string
	sess         *domain.Session
}

func NewHandler(uc UseCase, defaultModel string) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: usecase must not be nil")
	}
	if strings.TrimSpace(defaultModel) == "" {
		return nil, errors.New("handler: default model must not be empty")
	}
	return &Handler{
		uc:           uc,
		defaultModel: defaultModel,
		sess:         domain.NewSession(),
	}, nil
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event.Headers)
	resp := h.route(ctx, event)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers["content-type"] = "application/json"
	resp.Headers["X-Correlation-Id"] = corrID
	if resp.StatusCode >= 500 {
		slog.Error("request failed", "method", event.HTTPMethod, "path", event.Path, "status", resp.StatusCode, "correlationId", corrID)
	}
	return resp, nil
}

func (h *Handler) route(ctx context.Context, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	path := strings.TrimRight(event.Path, "/")
	switch {
	case path == "/chat" && event.HTTPMethod == http.MethodPost:
		return h.handleChat(ctx, event.Body)
	case path == "/archives" && event.HTTPMethod == http.MethodPost:
		return h.handleSave(ctx)
	case path == "/archives" && event.HTTPMethod == http.MethodGet:
		return h.handleList(ctx, event.QueryStringParameters)
	case strings.HasPrefix(path, "/archives/") && event.HTTPMethod == http.MethodGet:
		return h.handleLoad(ctx, strings.TrimPrefix(path, "/archives/"))
	case path == "/session/clear" && event.HTTPMethod == http.MethodPost:
		return h.handleClear()
	case path == "/session/new" && event.HTTPMethod == http.MethodPost:
		return h.handleNewChat(ctx)
	}
	return jsonError(http.StatusNotFound, usecase.ErrorNotFound)
}

func (h *Handler) handleChat(ctx context.Context, body string) events.APIGatewayProxyResponse {
	var req chatRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return jsonError(http.StatusBadRequest, usecase.ErrorValidation)
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = h.defaultModel
	}
	answer, err := h.uc.Send(ctx, h.sess, req.Prompt, model)
	if err != nil {
		return mapError(err)
	}
	return jsonOK(chatResponse{Answer: answer, SessionID: h.sess.ID, Turns: h.sess.Len()})
}

func (h *Handler) handleSave(ctx context.Context) events.APIGatewayProxyResponse {
	id, err := h.uc.SaveSession(ctx, h.sess)
	if err != nil {
		return mapError(err)
	}
	return jsonOK(saveResponse{ArchiveID: id})
}

func (h *Handler) handleList(ctx context.Context, query map[string]string) events.APIGatewayProxyResponse {
	limit := 0
	if raw := query["limit"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return jsonError(http.StatusBadRequest, usecase.ErrorValidation)
		}
		limit = n
	}
	summaries, err := h.uc.ListArchives(ctx, limit)
	if err != nil {
		return mapError(err)
	}
	out := listResponse{Archives: make([]archiveSummary, 0, len(summaries))}
	for _, s := range summaries {
		out.Archives = append(out.Archives, archiveSummary{ID: s.ID, TurnCount: s.TurnCount})
	}
	return jsonOK(out)
}

func (h *Handler) handleLoad(ctx context.Context, id string) events.APIGatewayProxyResponse {
	sess, err := h.uc.LoadArchive(ctx, id)
	if err != nil {
		return mapError(err)
	}
	h.sess = sess
	msgs := sess.Turns
	if msgs == nil {
		msgs = []domain.Turn{}
	}
	return jsonOK(sessionResponse{SessionID: sess.ID, Messages: msgs})
}

func (h *Handler) handleClear() events.APIGatewayProxyResponse {
	h.uc.ClearSession(h.sess)
	return jsonOK(sessionResponse{SessionID: h.sess.ID, Messages: []domain.Turn{}})
}

func (h *Handler) handleNewChat(ctx context.Context) events.APIGatewayProxyResponse {
	id, err := h.uc.NewChat(ctx, h.sess)
	if err != nil {
		// The session is already cleared at this point; the save failure
		// still has to reach the frontend.
		return mapError(err)
	}
	return jsonOK(saveResponse{ArchiveID: id})
}

// mapError translates the manager's error taxonomy into HTTP statuses.
func mapError(err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return jsonError(http.StatusInternalServerError, "INTERNAL_ERROR")
	}
	switch ucErr.Code {
	case usecase.ErrorValidation:
		return jsonError(http.StatusBadRequest, ucErr.Code)
	case usecase.ErrorNotFound:
		return jsonError(http.StatusNotFound, ucErr.Code)
	case usecase.ErrorProvider:
		if ucErr.Reason == "completion_rate_limited" {
			return jsonError(http.StatusTooManyRequests, ucErr.Code)
		}
		return jsonError(http.StatusBadGateway, ucErr.Code)
	case usecase.ErrorPersistence, usecase.ErrorCorruption:
		return jsonError(http.StatusInternalServerError, ucErr.Code)
	default:
		return jsonError(http.StatusInternalServerError, ucErr.Code)
	}
}

func jsonOK(v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return jsonError(http.StatusInternalServerError, "INTERNAL_ERROR")
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: string(body)}
}

func jsonError(status int, code usecase.ErrorCode) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(errorResponse{Error: string(code)})
	return events.APIGatewayProxyResponse{StatusCode: status, Body: string(body)}
}

// correlationID returns the inbound correlation id header when present
// (case-insensitive) or mints a new one.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "x-correlation-id") && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

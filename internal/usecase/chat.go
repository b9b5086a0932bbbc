package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"qa-chatbot/internal/archive"
	"qa-chatbot/internal/domain"
)

const (
	defaultListLimit = 5
	defaultMaxPrompt = 4000

	// Archive ids carry second resolution; two saves within the same second
	// collide and the later one wins.
	archiveIDLayout = "20060102_150405"
)

// CompletionClient is the completion-provider boundary. Calls are blocking
// and opaque; the service never retries them.
type CompletionClient interface {
	GenerateContent(ctx context.Context, model, prompt string) (string, error)
}

// ArchiveStore is the durable snapshot store consumed by the service.
type ArchiveStore interface {
	Save(ctx context.Context, rec domain.ArchiveRecord) error
	List(ctx context.Context, limit int) ([]domain.ArchiveSummary, error)
	Load(ctx context.Context, id string) (domain.ArchiveRecord, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ChatService owns session mutation and archive persistence. Sessions are
// explicit handles passed in by the caller; the service holds no live
// conversation state of its own.
type ChatService struct {
	llm          CompletionClient
	store        ArchiveStore
	maxPromptLen int
}

func NewChatService(llm CompletionClient, store ArchiveStore, maxPromptLen int) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: completion client must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: archive store must not be nil")
	}
	if maxPromptLen <= 0 {
		maxPromptLen = defaultMaxPrompt
	}
	return &ChatService{llm: llm, store: store, maxPromptLen: maxPromptLen}, nil
}

// AppendTurn appends one turn to the session. On any validation failure the
// session is left untouched.
func (s *ChatService) AppendTurn(sess *domain.Session, role domain.Role, content string) error {
	if sess == nil {
		return newError(ErrorValidation, "nil_session", nil)
	}
	if !role.Valid() {
		return newError(ErrorValidation, "unknown_role", nil)
	}
	if strings.TrimSpace(content) == "" {
		return newError(ErrorValidation, "empty_content", nil)
	}
	sess.Turns = append(sess.Turns, domain.Turn{Role: role, Content: content})
	return nil
}

// ClearSession discards every turn in the session. Archives are untouched.
func (s *ChatService) ClearSession(sess *domain.Session) {
	if sess == nil {
		return
	}
	sess.Turns = nil
}

// SaveSession snapshots the session into a new archive record and returns the
// record id. The session itself is not modified.
func (s *ChatService) SaveSession(ctx context.Context, sess *domain.Session) (string, error) {
	if sess == nil {
		return "", newError(ErrorValidation, "nil_session", nil)
	}
	id := timeNow().UTC().Format(archiveIDLayout)
	rec := domain.ArchiveRecord{
		ID:    id,
		Turns: append([]domain.Turn(nil), sess.Turns...),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return "", newError(ErrorPersistence, "archive_write_error", err)
	}
	return id, nil
}

// ListArchives returns up to limit archive summaries, most recent first.
// A limit of zero or below falls back to the default of 5. No archives is an
// empty result, not an error.
func (s *ChatService) ListArchives(ctx context.Context, limit int) ([]domain.ArchiveSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	summaries, err := s.store.List(ctx, limit)
	if err != nil {
		if errors.Is(err, archive.ErrCorrupted) {
			return nil, newError(ErrorCorruption, "archive_list_corrupted", err)
		}
		return nil, newError(ErrorPersistence, "archive_list_error", err)
	}
	return summaries, nil
}

// LoadArchive reconstructs a fresh session from the archive stored under id.
func (s *ChatService) LoadArchive(ctx context.Context, id string) (*domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, newError(ErrorValidation, "empty_archive_id", nil)
	}
	rec, err := s.store.Load(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrNotFound):
			return nil, newError(ErrorNotFound, "archive_not_found", err)
		case errors.Is(err, archive.ErrCorrupted):
			return nil, newError(ErrorCorruption, "archive_corrupted", err)
		default:
			return nil, newError(ErrorPersistence, "archive_read_error", err)
		}
	}
	sess := domain.NewSession()
	sess.Turns = rec.Turns
	return sess, nil
}

// Complete forwards the prompt to the completion provider and returns the
// generated text. Provider failures of any kind surface as PROVIDER_ERROR;
// retry policy, if any, belongs to the caller.
func (s *ChatService) Complete(ctx context.Context, prompt, model string) (string, error) {
	if err := s.validatePrompt(prompt, model); err != nil {
		return "", err
	}
	return s.complete(ctx, prompt, model)
}

// Send runs one full exchange: append the user turn, fetch the completion,
// append the assistant turn. When the provider fails, the user turn stays in
// the session and only the assistant turn is withheld.
func (s *ChatService) Send(ctx context.Context, sess *domain.Session, prompt, model string) (string, error) {
	if sess == nil {
		return "", newError(ErrorValidation, "nil_session", nil)
	}
	if err := s.validatePrompt(prompt, model); err != nil {
		return "", err
	}
	if err := s.AppendTurn(sess, domain.RoleUser, prompt); err != nil {
		return "", err
	}
	answer, err := s.complete(ctx, prompt, model)
	if err != nil {
		return "", err
	}
	if err := s.AppendTurn(sess, domain.RoleAssistant, answer); err != nil {
		return "", err
	}
	return answer, nil
}

// NewChat archives the current session (when it has any turns) and starts
// over. The clear is unconditional: a failed save still clears the session,
// and the save error is still reported.
func (s *ChatService) NewChat(ctx context.Context, sess *domain.Session) (string, error) {
	if sess == nil {
		return "", newError(ErrorValidation, "nil_session", nil)
	}
	if sess.Len() == 0 {
		s.ClearSession(sess)
		return "", nil
	}
	id, err := s.SaveSession(ctx, sess)
	s.ClearSession(sess)
	return id, err
}

func (s *ChatService) validatePrompt(prompt, model string) error {
	if strings.TrimSpace(prompt) == "" {
		return newError(ErrorValidation, "empty_prompt", nil)
	}
	if len(prompt) > s.maxPromptLen {
		return newError(ErrorValidation, "prompt_too_long", nil)
	}
	if strings.TrimSpace(model) == "" {
		return newError(ErrorValidation, "empty_model", nil)
	}
	return nil
}

func (s *ChatService) complete(ctx context.Context, prompt, model string) (string, error) {
	answer, err := s.llm.GenerateContent(ctx, model, prompt)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return "", newError(ErrorProvider, "completion_rate_limited", err)
		}
		return "", newError(ErrorProvider, "completion_error", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", newError(ErrorProvider, "empty_completion", nil)
	}
	return answer, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var timeNow = time.Now

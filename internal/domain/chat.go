package domain

import "github.com/google/uuid"

// Role tags which side of the conversation produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the recognized conversation roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is a single role-tagged message. Turns are immutable once appended;
// ordering within a session is insertion order.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is the live, in-memory conversation: an append-only sequence of
// turns. The frontend holds the handle and passes it to the manager; there is
// no process-wide session singleton.
type Session struct {
	ID    string
	Turns []Turn
}

// NewSession returns an empty session with a fresh handle.
func NewSession() *Session {
	return &Session{ID: uuid.NewString()}
}

// Len returns the number of turns in the session.
func (s *Session) Len() int {
	return len(s.Turns)
}

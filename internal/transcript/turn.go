// Package transcript holds the in-memory conversation and drives streamed
// assistant replies into it.
package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one entry of the transcript.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Hidden    bool      `json:"hidden,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newTurn(role Role, text string, hidden bool) Turn {
	return Turn{
		ID:        "turn_" + uuid.New().String()[:8],
		Role:      role,
		Text:      text,
		Hidden:    hidden,
		CreatedAt: time.Now(),
	}
}

// Snapshot is a consistent copy of the visible transcript.
type Snapshot struct {
	Turns         []Turn `json:"turns"`
	Pending       bool   `json:"pending"`
	PendingTurnID string `json:"pending_turn_id,omitempty"`
}

package session

import (
	"strings"

	"github.com/ChamsBouzaiene/petchat/internal/engine"
)

// DefaultID is used when a client does not name its session.
const DefaultID = "default"

// Turn is one message in a session's history. Turns are immutable once
// appended; the store only ever hands out copies.
type Turn struct {
	Role    engine.MessageRole `json:"role"`
	Content string             `json:"content"`
}

// UserTurn builds a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: engine.RoleUser, Content: content}
}

// AssistantTurn builds an assistant turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: engine.RoleAssistant, Content: content}
}

// ChatMessage converts the turn into the provider-agnostic message type.
func (t Turn) ChatMessage() engine.ChatMessage {
	return engine.ChatMessage{Role: t.Role, Content: t.Content}
}

// ResolveID trims id and falls back to DefaultID.
func ResolveID(id string) string {
	if trimmed := strings.TrimSpace(id); trimmed != "" {
		return trimmed
	}
	return DefaultID
}

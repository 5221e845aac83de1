// Package history decides which part of a session log is submitted to the
// model and how finished exchanges are written back.
package history

import (
	"strings"

	"github.com/ChamsBouzaiene/petchat/internal/engine"
	"github.com/ChamsBouzaiene/petchat/internal/session"
)

const (
	// DefaultTextWindow keeps roughly ten conversational rounds.
	DefaultTextWindow = 20
	// DefaultVideoWindow is shorter since the request also carries a video.
	DefaultVideoWindow = 10

	// VideoMarker prefixes the user turn recorded for a video message.
	VideoMarker = "[uploaded video]"
	// DefaultVideoCaption stands in for a missing caption in the log.
	DefaultVideoCaption = "Please analyze the pet behavior in this video."
)

// Store is the subset of the session store the policy writes to.
type Store interface {
	Append(sessionID string, turn session.Turn)
}

// Policy bounds submission slices. Zero values fall back to the defaults.
type Policy struct {
	TextWindow  int
	VideoWindow int
}

// DefaultPolicy returns the stock windows.
func DefaultPolicy() Policy {
	return Policy{TextWindow: DefaultTextWindow, VideoWindow: DefaultVideoWindow}
}

func (p Policy) textWindow() int {
	if p.TextWindow <= 0 {
		return DefaultTextWindow
	}
	return p.TextWindow
}

func (p Policy) videoWindow() int {
	if p.VideoWindow <= 0 {
		return DefaultVideoWindow
	}
	return p.VideoWindow
}

// BuildTextSubmission returns the newest TextWindow turns in their original
// order.
func (p Policy) BuildTextSubmission(turns []session.Turn) []session.Turn {
	return suffix(turns, p.textWindow())
}

// BuildVideoContextSubmission returns the newest VideoWindow textual turns
// used as context next to a video.
func (p Policy) BuildVideoContextSubmission(turns []session.Turn) []session.Turn {
	textual := make([]session.Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role != engine.RoleUser && t.Role != engine.RoleAssistant {
			continue
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		textual = append(textual, t)
	}
	return suffix(textual, p.videoWindow())
}

// RecordTextTurn appends the user message and the assistant reply.
func (p Policy) RecordTextTurn(store Store, sessionID, userText, assistantText string) {
	store.Append(sessionID, session.UserTurn(userText))
	store.Append(sessionID, session.AssistantTurn(assistantText))
}

// RecordVideoTurn appends a synthesized user turn for the video and the
// assistant reply, whatever the reply is.
func (p Policy) RecordVideoTurn(store Store, sessionID, caption, assistantText string) {
	store.Append(sessionID, session.UserTurn(VideoTurnContent(caption)))
	store.Append(sessionID, session.AssistantTurn(assistantText))
}

// VideoTurnContent renders the user turn content stored for a video message.
func VideoTurnContent(caption string) string {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		caption = DefaultVideoCaption
	}
	return VideoMarker + " " + caption
}

func suffix(turns []session.Turn, n int) []session.Turn {
	start := 0
	if len(turns) > n {
		start = len(turns) - n
	}
	out := make([]session.Turn, len(turns)-start)
	copy(out, turns[start:])
	return out
}

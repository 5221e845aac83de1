// Package gateway runs one conversational turn against the model provider
// and records it in the session log.
package gateway

import (
	"errors"

	"github.com/ChamsBouzaiene/petchat/internal/session"
)

// Status tags a Result.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded" // Text is a fallback message
)

var (
	// ErrEmptyAnswer marks a degraded result caused by an empty model answer.
	ErrEmptyAnswer = errors.New("gateway: model returned no content")

	// ErrAnalysisPanic marks a degraded result caused by a panic while a
	// video turn was being analyzed.
	ErrAnalysisPanic = errors.New("gateway: video analysis panicked")
)

// Result is the text returned to the caller and recorded as the assistant
// turn.
type Result struct {
	Text   string
	Status Status
	Err    error // underlying failure of a degraded result
}

// Degraded reports whether Text is a fallback message.
func (r Result) Degraded() bool { return r.Status == StatusDegraded }

func ok(text string) Result { return Result{Text: text, Status: StatusOK} }

func degraded(text string, err error) Result {
	return Result{Text: text, Status: StatusDegraded, Err: err}
}

// SessionStore is the part of session.Store the gateways use.
type SessionStore interface {
	Get(sessionID string) []session.Turn
	Append(sessionID string, turn session.Turn)
	Lock(sessionID string) func()
}

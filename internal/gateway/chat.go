package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ChamsBouzaiene/petchat/internal/engine"
	"github.com/ChamsBouzaiene/petchat/internal/history"
	"github.com/ChamsBouzaiene/petchat/internal/prompts"
	"github.com/ChamsBouzaiene/petchat/internal/session"
	"github.com/ChamsBouzaiene/petchat/internal/telemetry"
)

// ChatConfig tunes text turns.
type ChatConfig struct {
	Model        string
	SystemPrompt string // prepended when non-empty
	Options      engine.ChatOptions
	Policy       history.Policy
}

// ChatGateway sends text turns through an engine.LLMClient.
type ChatGateway struct {
	client    engine.LLMClient
	store     SessionStore
	cfg       ChatConfig
	telemetry *telemetry.Manager
}

// NewChatGateway creates a ChatGateway. tm may be nil.
func NewChatGateway(client engine.LLMClient, store SessionStore, cfg ChatConfig, tm *telemetry.Manager) *ChatGateway {
	return &ChatGateway{client: client, store: store, cfg: cfg, telemetry: tm}
}

// Complete runs one text turn for sessionID. Failures of the model call are
// returned as degraded results and recorded like any answer. Only an
// unreachable provider yields an error, in which case only the user turn is
// recorded.
func (g *ChatGateway) Complete(ctx context.Context, sessionID, userMessage string) (Result, error) {
	id := session.ResolveID(sessionID)
	unlock := g.store.Lock(id)
	defer unlock()

	start := time.Now()
	ctx, span := g.telemetry.StartSpan(ctx, "gateway.chat",
		attribute.String("petchat.session_id", id),
		attribute.String("petchat.model", g.cfg.Model),
	)

	result, err := g.complete(ctx, id, userMessage)

	g.telemetry.RecordRequest(ctx, telemetry.RequestData{
		Kind:      telemetry.KindChat,
		SessionID: id,
		Input:     userMessage,
		Duration:  time.Since(start),
		Degraded:  result.Degraded(),
		Error:     err,
	})
	if err == nil && result.Err != nil {
		span.SetAttributes(attribute.Bool("petchat.degraded", true))
		telemetry.EndSpan(span, result.Err)
	} else {
		telemetry.EndSpan(span, err)
	}
	return result, err
}

func (g *ChatGateway) complete(ctx context.Context, id, userMessage string) (Result, error) {
	pending := session.UserTurn(userMessage)
	turns := g.cfg.Policy.BuildTextSubmission(append(g.store.Get(id), pending))

	messages := make([]engine.ChatMessage, 0, len(turns)+1)
	if prompt := strings.TrimSpace(g.cfg.SystemPrompt); prompt != "" {
		messages = append(messages, engine.ChatMessage{Role: engine.RoleSystem, Content: prompt})
	}
	for _, t := range turns {
		messages = append(messages, t.ChatMessage())
	}

	for _, m := range messages {
		if err := m.Validate(); err != nil {
			log.Printf("[chat] session=%s not submitting history: %v", id, err)
			result := degraded(prompts.Render(prompts.IDChatError, map[string]string{"error": err.Error()}), err)
			g.cfg.Policy.RecordTextTurn(g.store, id, userMessage, result.Text)
			return result, nil
		}
	}

	log.Printf("[chat] session=%s submitting %d turns", id, len(turns))
	resp, err := g.client.Chat(ctx, g.cfg.Model, messages, g.cfg.Options)
	g.telemetry.RecordUpstream(ctx, telemetry.UpstreamData{Operation: "chat", Error: err})

	var result Result
	switch {
	case err != nil && engine.IsUnreachable(err):
		g.store.Append(id, pending)
		log.Printf("[chat] session=%s provider unreachable: %v", id, err)
		return Result{}, fmt.Errorf("chat: %w", err)
	case err != nil:
		log.Printf("[chat] session=%s model call failed: %v", id, err)
		result = degraded(prompts.Render(prompts.IDChatError, map[string]string{"error": err.Error()}), err)
	case strings.TrimSpace(resp.Assistant.Content) == "":
		log.Printf("[chat] session=%s empty answer (finish=%s)", id, resp.FinishReason)
		result = degraded(prompts.DefaultRegistry().Text(prompts.IDChatEmpty), ErrEmptyAnswer)
	default:
		result = ok(resp.Assistant.Content)
	}

	g.cfg.Policy.RecordTextTurn(g.store, id, userMessage, result.Text)
	return result, nil
}

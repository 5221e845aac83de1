package providers

import (
	"context"

	"github.com/ChamsBouzaiene/petchat/internal/engine"
	"github.com/ChamsBouzaiene/petchat/internal/prompts"
)

// MockClient answers every chat with a canned reply that echoes the newest
// user message. It is used when no model credential is configured.
type MockClient struct{}

// NewMockClient returns a MockClient.
func NewMockClient() *MockClient { return &MockClient{} }

// Chat implements engine.LLMClient.Chat.
func (MockClient) Chat(ctx context.Context, _ string, messages []engine.ChatMessage, _ engine.ChatOptions) (engine.LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return engine.LLMResponse{}, err
	}
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == engine.RoleUser {
			last = messages[i].Content
			break
		}
	}
	reply := prompts.Render(prompts.IDChatMock, map[string]string{"message": last})
	return engine.LLMResponse{
		Assistant:    engine.ChatMessage{Role: engine.RoleAssistant, Content: reply},
		FinishReason: "stop",
	}, nil
}

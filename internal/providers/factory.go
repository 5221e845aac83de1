package providers

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ChamsBouzaiene/petchat/internal/ark"
	"github.com/ChamsBouzaiene/petchat/internal/engine"
)

// Provider names accepted by NewLLMClient.
const (
	ProviderArk       = "ark"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Defaults for the Ark OpenAI-compatible endpoint.
const (
	DefaultArkBaseURL     = "https://ark.cn-beijing.volces.com/api/v3"
	DefaultArkModel       = "doubao-seed-1-8-251228"
	DefaultAnthropicModel = "claude-3-sonnet-20240229"
)

// Settings selects and configures the text chat provider.
type Settings struct {
	Provider        string
	ArkAPIKey       string
	ArkBaseURL      string
	ArkModel        string
	AnthropicAPIKey string
	AnthropicModel  string
}

// Selection is the resolved text chat client.
type Selection struct {
	Client     engine.LLMClient
	Provider   string
	Model      string
	Configured bool // false when running on the mock client
}

// NewLLMClient creates the text chat client described by s. Ark without an
// API key falls back to the mock client.
func NewLLMClient(s Settings) (Selection, error) {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	if provider == "" {
		provider = ProviderArk
	}

	switch provider {
	case ProviderArk:
		if s.ArkAPIKey == "" {
			log.Printf("[providers] ARK_API_KEY not set, using mock responses")
			return mockSelection(), nil
		}
		model := firstNonEmpty(s.ArkModel, DefaultArkModel)
		client, err := NewOpenAIClient(s.ArkAPIKey, model, firstNonEmpty(s.ArkBaseURL, DefaultArkBaseURL))
		if err != nil {
			return Selection{}, fmt.Errorf("failed to create Ark client: %w", err)
		}
		return Selection{Client: client, Provider: ProviderArk, Model: model, Configured: true}, nil

	case ProviderAnthropic:
		if s.AnthropicAPIKey == "" {
			return Selection{}, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		model := firstNonEmpty(s.AnthropicModel, DefaultAnthropicModel)
		client, err := NewAnthropicClient(s.AnthropicAPIKey, model)
		if err != nil {
			return Selection{}, fmt.Errorf("failed to create Anthropic client: %w", err)
		}
		return Selection{Client: client, Provider: ProviderAnthropic, Model: model, Configured: true}, nil

	case ProviderMock:
		return mockSelection(), nil

	default:
		return Selection{}, fmt.Errorf("unknown LLM_PROVIDER: %s (supported: ark, anthropic, mock)", provider)
	}
}

// VideoClient is the Ark file and response surface used for video analysis.
type VideoClient interface {
	UploadFile(ctx context.Context, path string, opts ark.UploadOptions) (ark.File, error)
	GetFile(ctx context.Context, id string) (ark.File, error)
	CreateResponse(ctx context.Context, req ark.ResponseRequest) (ark.Response, error)
}

// NewVideoClient returns the Ark client, or the in-process mock when no Ark
// key is configured or the mock provider is selected. Video analysis always
// runs on Ark, whichever provider serves text chat.
func NewVideoClient(s Settings) (VideoClient, bool) {
	if s.ArkAPIKey == "" || strings.EqualFold(strings.TrimSpace(s.Provider), ProviderMock) {
		return NewMockVideoClient(), false
	}
	return ark.NewClient(s.ArkAPIKey, firstNonEmpty(s.ArkBaseURL, DefaultArkBaseURL)), true
}

func mockSelection() Selection {
	return Selection{Client: NewMockClient(), Provider: ProviderMock, Model: "mock"}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

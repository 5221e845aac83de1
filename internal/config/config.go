// Package config resolves the service configuration from defaults, an
// optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/ChamsBouzaiene/petchat/internal/engine"
	"github.com/ChamsBouzaiene/petchat/internal/history"
	"github.com/ChamsBouzaiene/petchat/internal/providers"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// ByteSize is a size in bytes written in human units ("100MB", "1.5GiB").
// Units are binary, as parsed by go-units RAMInBytes.
type ByteSize int64

// ParseByteSize parses s with go-units RAMInBytes.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := units.RAMInBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return ByteSize(n), nil
}

func (b ByteSize) String() string { return units.BytesSize(float64(b)) }

// UnmarshalYAML accepts either a number of bytes or a human size string.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	size, err := ParseByteSize(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid size %q: %w", node.Line, node.Value, err)
	}
	*b = size
	return nil
}

// MarshalYAML writes the human form.
func (b ByteSize) MarshalYAML() (any, error) { return b.String(), nil }

// Config holds every knob of the service.
type Config struct {
	Addr          string   `yaml:"addr"`
	UploadDir     string   `yaml:"upload_dir"`
	MaxUploadSize ByteSize `yaml:"max_upload_size"`
	StaticDir     string   `yaml:"static_dir,omitempty"`

	Provider        string `yaml:"provider"`
	ArkAPIKey       string `yaml:"ark_api_key,omitempty"`
	ArkBaseURL      string `yaml:"ark_base_url"`
	ArkModel        string `yaml:"ark_model"`
	ArkVideoModel   string `yaml:"ark_video_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key,omitempty"`
	AnthropicModel  string `yaml:"anthropic_model"`

	VideoFPS          float64       `yaml:"video_fps"`
	TextHistory       int           `yaml:"text_history"`
	VideoHistory      int           `yaml:"video_history"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	GatewayTimeout    time.Duration `yaml:"gateway_timeout"`
	// SystemPrompt is prepended to text chats. "default" selects the
	// built-in prompt; empty sends none.
	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// OTLPEndpoint enables trace export; "default" defers to OTEL_* variables.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Addr:              ":5000",
		UploadDir:         "uploads",
		MaxUploadSize:     100 * units.MiB,
		Provider:          providers.ProviderArk,
		ArkBaseURL:        providers.DefaultArkBaseURL,
		ArkModel:          providers.DefaultArkModel,
		AnthropicModel:    providers.DefaultAnthropicModel,
		VideoFPS:          0.3,
		TextHistory:       history.DefaultTextWindow,
		VideoHistory:      history.DefaultVideoWindow,
		ProcessingTimeout: 5 * time.Minute,
		PollInterval:      2 * time.Second,
		GatewayTimeout:    10 * time.Minute,
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Addr) == "" {
		problems = append(problems, "addr is required")
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		problems = append(problems, "upload_dir is required")
	}
	if c.MaxUploadSize <= 0 {
		problems = append(problems, "max_upload_size must be positive")
	}
	switch c.Provider {
	case providers.ProviderArk, providers.ProviderAnthropic, providers.ProviderMock:
	default:
		problems = append(problems, fmt.Sprintf("unknown provider %q (supported: ark, anthropic, mock)", c.Provider))
	}
	if c.VideoFPS <= 0 {
		problems = append(problems, "video_fps must be positive")
	}
	if c.TextHistory <= 0 || c.VideoHistory <= 0 {
		problems = append(problems, "history windows must be positive")
	}
	if c.ProcessingTimeout <= 0 || c.GatewayTimeout <= 0 {
		problems = append(problems, "timeouts must be positive")
	}
	if c.PollInterval <= 0 || c.PollInterval > c.ProcessingTimeout {
		problems = append(problems, "poll_interval must be positive and not exceed processing_timeout")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// VideoModel is the model used for video analysis.
func (c *Config) VideoModel() string {
	if c.ArkVideoModel != "" {
		return c.ArkVideoModel
	}
	return c.ArkModel
}

// APIConfigured reports whether a real model credential is present.
func (c *Config) APIConfigured() bool {
	switch c.Provider {
	case providers.ProviderMock:
		return false
	case providers.ProviderAnthropic:
		return c.AnthropicAPIKey != ""
	default:
		return c.ArkAPIKey != ""
	}
}

// ProviderSettings maps the config to the provider factory input.
func (c *Config) ProviderSettings() providers.Settings {
	return providers.Settings{
		Provider:        c.Provider,
		ArkAPIKey:       c.ArkAPIKey,
		ArkBaseURL:      c.ArkBaseURL,
		ArkModel:        c.ArkModel,
		AnthropicAPIKey: c.AnthropicAPIKey,
		AnthropicModel:  c.AnthropicModel,
	}
}

// HistoryPolicy returns the submission windows.
func (c *Config) HistoryPolicy() history.Policy {
	return history.Policy{TextWindow: c.TextHistory, VideoWindow: c.VideoHistory}
}

// PollPolicy returns the processing wait policy.
func (c *Config) PollPolicy() engine.PollPolicy {
	policy := engine.DefaultPollPolicy()
	policy.InitialInterval = c.PollInterval
	if policy.MaxInterval < c.PollInterval {
		policy.MaxInterval = c.PollInterval
	}
	policy.Timeout = c.ProcessingTimeout
	return policy
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	out.ArkAPIKey = redact(c.ArkAPIKey)
	out.AnthropicAPIKey = redact(c.AnthropicAPIKey)
	return &out
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the optional YAML file.
const EnvConfigFile = "PETCHAT_CONFIG"

// Load resolves the configuration: defaults, then .env, then the YAML file
// named by PETCHAT_CONFIG, then environment variables.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are skipped.
func LoadFiles(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("[config] ignoring %s: %v", f, err)
		}
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv(EnvConfigFile)); path != "" {
		if err := cfg.mergeYAML(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config yaml %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("PETCHAT_ADDR", &c.Addr)
	str("PETCHAT_UPLOAD_DIR", &c.UploadDir)
	if v, ok := lookup("PETCHAT_MAX_UPLOAD_SIZE"); ok && strings.TrimSpace(v) != "" {
		size, err := ParseByteSize(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PETCHAT_MAX_UPLOAD_SIZE: %w", err))
		} else {
			c.MaxUploadSize = size
		}
	}
	str("PETCHAT_STATIC_DIR", &c.StaticDir)

	str("LLM_PROVIDER", &c.Provider)
	c.Provider = strings.ToLower(c.Provider)
	str("ARK_API_KEY", &c.ArkAPIKey)
	str("ARK_BASE_URL", &c.ArkBaseURL)
	str("ARK_MODEL", &c.ArkModel)
	str("ARK_VIDEO_MODEL", &c.ArkVideoModel)
	str("ANTHROPIC_API_KEY", &c.AnthropicAPIKey)
	str("ANTHROPIC_MODEL", &c.AnthropicModel)

	float("PETCHAT_VIDEO_FPS", &c.VideoFPS)
	integer("PETCHAT_TEXT_HISTORY", &c.TextHistory)
	integer("PETCHAT_VIDEO_HISTORY", &c.VideoHistory)
	duration("PETCHAT_PROCESSING_TIMEOUT", &c.ProcessingTimeout)
	duration("PETCHAT_POLL_INTERVAL", &c.PollInterval)
	duration("PETCHAT_GATEWAY_TIMEOUT", &c.GatewayTimeout)
	str("PETCHAT_SYSTEM_PROMPT", &c.SystemPrompt)

	if v, ok := lookup("PETCHAT_OTLP"); ok && strings.TrimSpace(v) != "" {
		v = strings.TrimSpace(v)
		if enabled, err := strconv.ParseBool(v); err == nil {
			if enabled {
				c.OTLPEndpoint = "default"
			} else {
				c.OTLPEndpoint = ""
			}
		} else {
			c.OTLPEndpoint = v
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

package telemetry

import (
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// FilterConfig declares how sensitive data is sanitized before it is attached
// to spans or metrics.
type FilterConfig struct {
	Mask     string   // replacement for every match; defaults to "[redacted]"
	Patterns []string // extra regular expressions on top of the defaults
}

// Filter masks strings that should never reach telemetry backends.
type Filter struct {
	mask     string
	patterns []*regexp.Regexp
}

var defaultPatterns = []string{
	`(?i)sk-[a-z0-9]{6,}`,
	`(?i)bearer\s+[a-z0-9\-_.]{8,}`,
	`(?i)(ark|anthropic)?[_-]?(api[_-]?key|token|secret)[\s:=]+[a-z0-9\-_.]{8,}`,
	// Ark keys are bare UUIDs.
	`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`,
}

// NewFilter compiles the configured mask and patterns.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	mask := strings.TrimSpace(cfg.Mask)
	if mask == "" {
		mask = "[redacted]"
	}

	seen := map[string]struct{}{}
	compiled := make([]*regexp.Regexp, 0, len(defaultPatterns)+len(cfg.Patterns))
	for _, raw := range append(append([]string{}, defaultPatterns...), cfg.Patterns...) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("telemetry: compile filter %q: %w", raw, err)
		}
		compiled = append(compiled, re)
		seen[raw] = struct{}{}
	}
	return &Filter{mask: mask, patterns: compiled}, nil
}

// MaskText replaces all matching segments in value.
func (f *Filter) MaskText(value string) string {
	if f == nil || value == "" {
		return value
	}
	for _, re := range f.patterns {
		value = re.ReplaceAllString(value, f.mask)
	}
	return value
}

// MaskAttributes returns a sanitized copy of attrs. Only string values are
// inspected.
func (f *Filter) MaskAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	if f == nil || len(attrs) == 0 {
		return attrs
	}
	clean := make([]attribute.KeyValue, len(attrs))
	for i, attr := range attrs {
		switch attr.Value.Type() {
		case attribute.STRING:
			clean[i] = attr.Key.String(f.MaskText(attr.Value.AsString()))
		case attribute.STRINGSLICE:
			values := attr.Value.AsStringSlice()
			masked := make([]string, len(values))
			for j, v := range values {
				masked[j] = f.MaskText(v)
			}
			clean[i] = attr.Key.StringSlice(masked)
		default:
			clean[i] = attr
		}
	}
	return clean
}

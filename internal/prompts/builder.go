package prompts

import (
	"fmt"
	"strings"
)

// PromptBuilder composes a registered prompt with extra fragments and
// {{key}} variables.
type PromptBuilder struct {
	fragments []string
	variables map[string]string
}

// NewPromptBuilder starts from the latest version of the prompt id.
func NewPromptBuilder(registry *PromptRegistry, id string) (*PromptBuilder, error) {
	base, err := registry.GetLatest(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get base prompt: %w", err)
	}
	return &PromptBuilder{
		fragments: []string{base.Content},
		variables: make(map[string]string),
	}, nil
}

// AddFragment appends a fragment separated by a blank line.
func (b *PromptBuilder) AddFragment(text string) *PromptBuilder {
	if strings.TrimSpace(text) != "" {
		b.fragments = append(b.fragments, text)
	}
	return b
}

// SetVariable sets a variable for template substitution.
func (b *PromptBuilder) SetVariable(key, value string) *PromptBuilder {
	b.variables[key] = value
	return b
}

// Build constructs the final string. Unknown placeholders are left as is.
func (b *PromptBuilder) Build() string {
	result := strings.Join(b.fragments, "\n\n")
	if len(b.variables) == 0 {
		return result
	}
	pairs := make([]string, 0, len(b.variables)*2)
	for key, value := range b.variables {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(result)
}

// Render substitutes vars into the latest version of the built-in prompt id.
// Unknown ids render as "".
func Render(id string, vars map[string]string) string {
	b, err := NewPromptBuilder(DefaultRegistry(), id)
	if err != nil {
		return ""
	}
	for k, v := range vars {
		b.SetVariable(k, v)
	}
	return b.Build()
}

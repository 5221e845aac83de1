// Package prompts keeps the fixed texts the relay sends to models or returns
// to users, addressable by ID and version.
package prompts

// PromptVersion represents a version identifier for prompts.
type PromptVersion string

// PromptV1 is the only version shipped so far.
const PromptV1 PromptVersion = "1.0.0"

// Prompt IDs registered by this package.
const (
	IDSystem            = "system"
	IDVideoAnalysis     = "video_analysis"
	IDVideoCaption      = "video_caption"
	IDChatMock          = "chat_mock"
	IDVideoMock         = "video_mock"
	IDVideoMockQuestion = "video_mock_question"
	IDVideoMockHint     = "video_mock_hint"
	IDChatError         = "chat_error"
	IDChatEmpty         = "chat_empty"
	IDVideoError        = "video_error"
	IDVideoEmpty        = "video_empty"
	IDVideoTimeout      = "video_timeout"
)

// Prompt represents a versioned text with metadata.
type Prompt struct {
	ID          string        // Unique identifier (e.g., "system", "video_error")
	Version     PromptVersion // Version of this prompt
	Content     string        // Text, may contain {{var}} placeholders
	Description string        // Human-readable description
	Tags        []string      // Tags for categorization (e.g., ["video", "fallback"])
	Deprecated  bool          // True if this version is deprecated
}

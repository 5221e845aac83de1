package prompts

func registerBuiltins(registry *PromptRegistry) {
	for _, p := range []*Prompt{
		{
			ID:          IDSystem,
			Content:     `You are a pet behavior consultant. Answer questions about pets' actions, body language and emotional state in a warm, practical way. When a behavior could indicate a health problem, say so and suggest seeing a veterinarian.`,
			Description: "Default system prompt for text chat",
			Tags:        []string{"chat"},
		},
		{
			ID:          IDVideoAnalysis,
			Content:     "Please analyze in detail the pet behavior in this video, including actions, expressions and emotional state, and give a professional interpretation of the behavior.",
			Description: "Instruction sent with a video when the user gave no caption",
			Tags:        []string{"video"},
		},
		{
			ID:          IDVideoCaption,
			Content:     "Please analyze the pet behavior in this video.",
			Description: "Caption recorded in history for an uncaptioned video",
			Tags:        []string{"video", "history"},
		},
		{
			ID:          IDChatMock,
			Content:     "[mock response] I received your message: '{{message}}'. Set ARK_API_KEY to use the real API.",
			Description: "Text reply when no model credential is configured",
			Tags:        []string{"chat", "mock"},
		},
		{
			ID:          IDVideoMock,
			Content:     "This is a simulated video analysis result.",
			Description: "Video reply when no model credential is configured",
			Tags:        []string{"video", "mock"},
		},
		{
			ID:          IDVideoMockQuestion,
			Content:     "Your question: {{question}}",
			Description: "Echo of the caption appended to the simulated video reply",
			Tags:        []string{"video", "mock"},
		},
		{
			ID:          IDVideoMockHint,
			Content:     "Set ARK_API_KEY to get a real analysis of the pet behavior in your video.",
			Description: "Closing hint of the simulated video reply",
			Tags:        []string{"video", "mock"},
		},
		{
			ID:          IDChatError,
			Content:     "Sorry, an error occurred while processing your message: {{error}}",
			Description: "Degraded text reply",
			Tags:        []string{"chat", "fallback"},
		},
		{
			ID:          IDChatEmpty,
			Content:     "Sorry, the model returned an empty answer. Please try again.",
			Description: "Degraded text reply for an empty completion",
			Tags:        []string{"chat", "fallback"},
		},
		{
			ID:          IDVideoError,
			Content:     "Sorry, an error occurred while analyzing the video: {{error}}",
			Description: "Degraded video reply",
			Tags:        []string{"video", "fallback"},
		},
		{
			ID:          IDVideoEmpty,
			Content:     "Video analysis completed, but no content was returned.",
			Description: "Video reply when the model produced no text",
			Tags:        []string{"video", "fallback"},
		},
		{
			ID:          IDVideoTimeout,
			Content:     "Sorry, the video is still being processed after {{timeout}}. Please try again later or upload a shorter clip.",
			Description: "Degraded video reply when processing exceeds the bound",
			Tags:        []string{"video", "fallback"},
		},
	} {
		p.Version = PromptV1
		registry.Register(p)
	}
}

package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ChamsBouzaiene/petchat/internal/ark"
	"github.com/ChamsBouzaiene/petchat/internal/prompts"
)

// MockVideoClient mimics the Ark Files and Responses endpoints in process.
// Uploaded files become active on their first status check.
type MockVideoClient struct {
	mu    sync.Mutex
	files map[string]ark.File
}

// NewMockVideoClient returns an empty MockVideoClient.
func NewMockVideoClient() *MockVideoClient {
	return &MockVideoClient{files: make(map[string]ark.File)}
}

// UploadFile records the file at path as processing.
func (m *MockVideoClient) UploadFile(ctx context.Context, path string, opts ark.UploadOptions) (ark.File, error) {
	if err := ctx.Err(); err != nil {
		return ark.File{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return ark.File{}, fmt.Errorf("open upload: %w", err)
	}
	purpose := opts.Purpose
	if purpose == "" {
		purpose = ark.PurposeUserData
	}
	f := ark.File{
		ID:       "file-mock-" + uuid.NewString(),
		Object:   "file",
		Bytes:    info.Size(),
		Filename: info.Name(),
		Purpose:  purpose,
		Status:   ark.FileStatusProcessing,
	}
	m.mu.Lock()
	m.files[f.ID] = f
	m.mu.Unlock()
	return f, nil
}

// GetFile returns the file as active.
func (m *MockVideoClient) GetFile(ctx context.Context, id string) (ark.File, error) {
	if err := ctx.Err(); err != nil {
		return ark.File{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return ark.File{}, &ark.APIError{StatusCode: 404, Message: "file not found: " + id}
	}
	f.Status = ark.FileStatusActive
	m.files[id] = f
	return f, nil
}

// CreateResponse answers with the simulated analysis, echoing the user's
// caption when one was given.
func (m *MockVideoClient) CreateResponse(ctx context.Context, req ark.ResponseRequest) (ark.Response, error) {
	if err := ctx.Err(); err != nil {
		return ark.Response{}, err
	}

	var question string
	if n := len(req.Input); n > 0 {
		for _, part := range req.Input[n-1].Parts {
			if part.Type == ark.PartInputText {
				question = strings.TrimSpace(part.Text)
			}
		}
	}

	b, err := prompts.NewPromptBuilder(prompts.DefaultRegistry(), prompts.IDVideoMock)
	if err != nil {
		return ark.Response{}, err
	}
	if question != "" && question != prompts.DefaultRegistry().Text(prompts.IDVideoAnalysis) {
		b.AddFragment(prompts.Render(prompts.IDVideoMockQuestion, map[string]string{"question": question}))
	}
	b.AddFragment(prompts.DefaultRegistry().Text(prompts.IDVideoMockHint))

	return ark.Response{
		ID:     "resp-mock-" + uuid.NewString(),
		Model:  req.Model,
		Status: "completed",
		Output: []ark.OutputItem{{
			Type:    "message",
			Role:    "assistant",
			Content: []ark.ContentPart{{Type: ark.PartOutputText, Text: b.Build()}},
		}},
	}, nil
}

// Package ark adapts the Volcengine Ark runtime SDK to the file and response
// calls used for video understanding. Text chat goes through the
// OpenAI-compatible SDK instead.
package ark

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model/file"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model/responses"
	"github.com/volcengine/volcengine-go-sdk/volcengine"
)

// DefaultBaseURL is the Ark API root in the cn-beijing region.
const DefaultBaseURL = "https://ark.cn-beijing.volces.com/api/v3"

var (
	// ErrFileFailed reports that Ark rejected an uploaded file during processing.
	ErrFileFailed = errors.New("ark: file processing failed")

	// ErrInvalidFileID rejects ids that would not stay inside /files/{id}.
	ErrInvalidFileID = errors.New("ark: invalid file id")
)

// APIError is a non-2xx answer from Ark, or an error object embedded in a
// response body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ark: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("ark: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to one Ark endpoint with one API key through arkruntime.
type Client struct {
	sdk *arkruntime.Client
}

type options struct {
	httpClient *http.Client
	retries    int
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient replaces the SDK's default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		if hc != nil {
			o.httpClient = hc
		}
	}
}

// WithRetries sets how many times the SDK retries 429 and 5xx answers.
// Zero sends each request once.
func WithRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL.
func NewClient(apiKey, baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	o := options{retries: -1}
	for _, opt := range opts {
		opt(&o)
	}

	setters := []arkruntime.ConfigOption{arkruntime.WithBaseUrl(baseURL)}
	if o.httpClient != nil {
		setters = append(setters, arkruntime.WithHTTPClient(o.httpClient))
	}
	if o.retries >= 0 {
		setters = append(setters, arkruntime.WithRetryTimes(o.retries))
	}
	return &Client{sdk: arkruntime.NewClientWithApiKey(apiKey, setters...)}
}

// UploadFile sends the file at path to POST /files. The returned file is
// usually still processing.
func (c *Client) UploadFile(ctx context.Context, path string, opts UploadOptions) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	purpose := opts.Purpose
	if purpose == "" {
		purpose = PurposeUserData
	}
	req := &file.UploadFileRequest{File: f, Purpose: file.Purpose(purpose)}
	if opts.FPS > 0 {
		req.PreprocessConfigs = &file.PreprocessConfigs{
			Video: &file.Video{Fps: volcengine.Float64(opts.FPS)},
		}
	}

	meta, err := c.sdk.UploadFile(ctx, req)
	if err != nil {
		return File{}, fmt.Errorf("upload file: %w", convertError(err))
	}
	return fileFromMeta(meta), nil
}

// GetFile fetches the current state of an uploaded file.
func (c *Client) GetFile(ctx context.Context, id string) (File, error) {
	if err := validateFileID(id); err != nil {
		return File{}, err
	}
	meta, err := c.sdk.RetrieveFile(ctx, id)
	if err != nil {
		return File{}, fmt.Errorf("get file %s: %w", id, convertError(err))
	}
	return fileFromMeta(meta), nil
}

// validateFileID accepts only ids that need no escaping, since the SDK
// appends the id to the request path as is.
func validateFileID(id string) error {
	if id == "" || id == "." || id == ".." || url.PathEscape(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidFileID, id)
	}
	return nil
}

// CreateResponse issues POST /responses.
func (c *Client) CreateResponse(ctx context.Context, r ResponseRequest) (Response, error) {
	req, err := toResponsesRequest(r)
	if err != nil {
		return Response{}, err
	}
	obj, err := c.sdk.CreateResponses(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("create response: %w", convertError(err))
	}
	out := responseFromObject(obj)
	if out.Error != nil && out.Error.Message != "" {
		return out, &APIError{StatusCode: http.StatusOK, Code: out.Error.Code, Message: out.Error.Message}
	}
	return out, nil
}

func toResponsesRequest(r ResponseRequest) (*responses.ResponsesRequest, error) {
	items := make([]*responses.InputItem, 0, len(r.Input))
	for _, m := range r.Input {
		role, ok := responses.MessageRole_Enum_value[m.Role]
		if !ok {
			return nil, fmt.Errorf("ark: unsupported message role %q", m.Role)
		}
		parts := m.Parts
		if len(parts) == 0 {
			parts = []ContentPart{InputText(m.Text)}
		}
		content := make([]*responses.ContentItem, 0, len(parts))
		for _, p := range parts {
			item, err := toContentItem(p)
			if err != nil {
				return nil, err
			}
			content = append(content, item)
		}
		msgType := responses.ItemType_message
		items = append(items, &responses.InputItem{Union: &responses.InputItem_InputMessage{
			InputMessage: &responses.ItemInputMessage{
				Type:    &msgType,
				Role:    responses.MessageRole_Enum(role),
				Content: content,
			},
		}})
	}

	req := &responses.ResponsesRequest{
		Model: r.Model,
		Input: &responses.ResponsesInput{Union: &responses.ResponsesInput_ListValue{
			ListValue: &responses.InputItemList{ListValue: items},
		}},
	}
	if r.MaxOutputTokens > 0 {
		req.MaxOutputTokens = volcengine.Int64(int64(r.MaxOutputTokens))
	}
	return req, nil
}

func toContentItem(p ContentPart) (*responses.ContentItem, error) {
	switch p.Type {
	case PartInputText:
		return &responses.ContentItem{Union: &responses.ContentItem_Text{
			Text: &responses.ContentItemText{Type: responses.ContentItemType_input_text, Text: p.Text},
		}}, nil
	case PartInputVideo:
		return &responses.ContentItem{Union: &responses.ContentItem_Video{
			Video: &responses.ContentItemVideo{Type: responses.ContentItemType_input_video, FileId: volcengine.String(p.FileID)},
		}}, nil
	default:
		return nil, fmt.Errorf("ark: unsupported content part %q", p.Type)
	}
}

func responseFromObject(obj *responses.ResponseObject) Response {
	out := Response{
		ID:     obj.GetId(),
		Model:  obj.GetModel(),
		Status: obj.GetStatus().String(),
	}
	for _, item := range obj.GetOutput() {
		msg := item.GetOutputMessage()
		if msg == nil {
			out.Output = append(out.Output, OutputItem{Type: "other"})
			continue
		}
		o := OutputItem{Type: "message", Role: msg.GetRole().String()}
		for _, c := range msg.GetContent() {
			if t := c.GetText(); t != nil {
				o.Content = append(o.Content, ContentPart{Type: t.GetType().String(), Text: t.GetText()})
			}
		}
		out.Output = append(out.Output, o)
	}
	if e := obj.GetError(); e != nil {
		out.Error = &ErrorDetail{Code: e.GetCode(), Message: e.GetMessage()}
	}
	if u := obj.GetUsage(); u != nil {
		out.Usage.InputTokens = int(u.GetInputTokens())
		out.Usage.OutputTokens = int(u.GetOutputTokens())
		out.Usage.TotalTokens = int(u.GetTotalTokens())
	}
	return out
}

func fileFromMeta(meta *file.FileMeta) File {
	f := File{
		ID:        meta.ID,
		Object:    string(meta.ObjectType),
		Bytes:     meta.GetBytes(),
		CreatedAt: meta.CreatedAt,
		Filename:  meta.FileName,
		Purpose:   string(meta.Purpose),
		Status:    string(meta.Status),
	}
	if e := meta.GetError(); e != nil {
		f.Error = &ErrorDetail{Code: e.Code, Message: e.Message}
	}
	return f
}

// convertError maps SDK error types onto APIError so callers classify
// failures by status code alone.
func convertError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			RequestID:  apiErr.RequestId,
		}
	}
	var reqErr *model.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: msg, RequestID: reqErr.RequestId}
	}
	return err
}

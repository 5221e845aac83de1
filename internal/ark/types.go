package ark

// PurposeUserData is the only upload purpose the Responses API reads.
const PurposeUserData = "user_data"

// File states reported by GET /files/{id}.
const (
	FileStatusProcessing = "processing"
	FileStatusActive     = "active"
	FileStatusFailed     = "failed"
)

// UploadOptions tunes POST /files.
type UploadOptions struct {
	Purpose string
	FPS     float64 // video frame sampling rate; 0 keeps the server default
}

// File is an uploaded file object.
type File struct {
	ID        string
	Object    string
	Bytes     int64
	CreatedAt int64
	Filename  string
	Purpose   string
	Status    string
	Error     *ErrorDetail
}

// Processed reports whether the file is ready to be referenced.
func (f File) Processed() bool { return f.Status == FileStatusActive }

// Failed reports whether processing ended in failure.
func (f File) Failed() bool { return f.Status == FileStatusFailed }

// ErrorDetail is the error object Ark embeds in failures.
type ErrorDetail struct {
	Code    string
	Message string
}

// Content part types.
const (
	PartInputText  = "input_text"
	PartInputVideo = "input_video"
	PartOutputText = "output_text"
)

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type   string
	Text   string
	FileID string
}

// InputText builds an input_text part.
func InputText(text string) ContentPart { return ContentPart{Type: PartInputText, Text: text} }

// InputVideo builds an input_video part referencing an uploaded file.
func InputVideo(fileID string) ContentPart { return ContentPart{Type: PartInputVideo, FileID: fileID} }

// InputMessage is one entry of the Responses input list. A message without
// Parts is sent as a single input_text part holding Text.
type InputMessage struct {
	Role  string
	Text  string
	Parts []ContentPart
}

// ResponseRequest is the body of POST /responses.
type ResponseRequest struct {
	Model           string
	Input           []InputMessage
	MaxOutputTokens int
}

// Response is the result of POST /responses.
type Response struct {
	ID     string
	Model  string
	Status string
	Output []OutputItem
	Usage  struct {
		InputTokens  int
		OutputTokens int
		TotalTokens  int
	}
	Error *ErrorDetail
}

// OutputItem is one element of Response.Output. Items other than messages
// (reasoning, tool calls) carry no content.
type OutputItem struct {
	Type    string
	Role    string
	Content []ContentPart
}

// OutputText concatenates every output_text fragment of every assistant
// message, in order.
func (r Response) OutputText() string {
	var text string
	for _, item := range r.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == PartOutputText {
				text += part.Text
			}
		}
	}
	return text
}

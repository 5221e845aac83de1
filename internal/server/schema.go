package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const chatSchemaJSON = `{
  "type": "object",
  "properties": {
    "message": {"type": "string", "pattern": "\\S"},
    "session_id": {"type": ["string", "null"]}
  },
  "required": ["message"],
  "additionalProperties": false
}`

const sessionSchemaJSON = `{
  "type": "object",
  "properties": {
    "session_id": {"type": ["string", "null"]}
  },
  "additionalProperties": false
}`

var (
	chatSchema    = mustSchema(chatSchemaJSON)
	sessionSchema = mustSchema(sessionSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("server: invalid schema: %v", err))
	}
	return schema
}

// ValidationError lists the schema violations of a request body.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Errors, "; ")
}

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON validates the body against schema and decodes it into v. An
// empty body is treated as {}.
func decodeJSON(r *http.Request, schema *gojsonschema.Schema, v any) error {
	var body []byte
	if r.Body != nil {
		defer r.Body.Close()
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, defaultMaxJSON+1))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if int64(len(body)) > defaultMaxJSON {
			return errBodyTooLarge
		}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return &ValidationError{Errors: msgs}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

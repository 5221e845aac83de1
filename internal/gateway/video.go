package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ChamsBouzaiene/petchat/internal/ark"
	"github.com/ChamsBouzaiene/petchat/internal/engine"
	"github.com/ChamsBouzaiene/petchat/internal/history"
	"github.com/ChamsBouzaiene/petchat/internal/prompts"
	"github.com/ChamsBouzaiene/petchat/internal/session"
	"github.com/ChamsBouzaiene/petchat/internal/telemetry"
)

// DefaultVideoFPS is the frame sampling rate requested for uploaded videos.
const DefaultVideoFPS = 0.3

// VideoClient uploads a video, reports its processing state and answers a
// multimodal request.
type VideoClient interface {
	UploadFile(ctx context.Context, path string, opts ark.UploadOptions) (ark.File, error)
	GetFile(ctx context.Context, id string) (ark.File, error)
	CreateResponse(ctx context.Context, req ark.ResponseRequest) (ark.Response, error)
}

// VideoConfig tunes video turns.
type VideoConfig struct {
	Model  string
	FPS    float64
	Poll   engine.PollPolicy
	Policy history.Policy
}

// VideoRequest is one stored video plus its optional caption.
type VideoRequest struct {
	Path      string
	Caption   string
	SessionID string
}

// VideoGateway runs the upload, wait and analyze sequence for a video turn.
type VideoGateway struct {
	client    VideoClient
	store     SessionStore
	cfg       VideoConfig
	telemetry *telemetry.Manager
}

// NewVideoGateway creates a VideoGateway. Zero poll and FPS settings take the
// defaults. tm may be nil.
func NewVideoGateway(client VideoClient, store SessionStore, cfg VideoConfig, tm *telemetry.Manager) *VideoGateway {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultVideoFPS
	}
	if cfg.Poll == (engine.PollPolicy{}) {
		cfg.Poll = engine.DefaultPollPolicy()
	}
	return &VideoGateway{client: client, store: store, cfg: cfg, telemetry: tm}
}

// Analyze never fails: every outcome, including timeouts, produces a
// non-empty text that is also recorded as the assistant turn.
func (g *VideoGateway) Analyze(ctx context.Context, req VideoRequest) Result {
	id := session.ResolveID(req.SessionID)
	unlock := g.store.Lock(id)
	defer unlock()

	start := time.Now()
	ctx, span := g.telemetry.StartSpan(ctx, "gateway.video",
		attribute.String("petchat.session_id", id),
		attribute.String("petchat.model", g.cfg.Model),
	)

	text, err := g.analyzeRecovered(ctx, id, req)

	var result Result
	switch {
	case errors.Is(err, engine.ErrProcessingTimeout):
		log.Printf("[video] session=%s processing timed out: %v", id, err)
		result = degraded(prompts.Render(prompts.IDVideoTimeout, map[string]string{"timeout": g.cfg.Poll.Timeout.String()}), err)
	case err != nil:
		log.Printf("[video] session=%s analysis failed: %v", id, err)
		result = degraded(prompts.Render(prompts.IDVideoError, map[string]string{"error": err.Error()}), err)
	case strings.TrimSpace(text) == "":
		log.Printf("[video] session=%s analysis returned no text", id)
		result = degraded(prompts.DefaultRegistry().Text(prompts.IDVideoEmpty), ErrEmptyAnswer)
	default:
		result = ok(text)
	}

	g.cfg.Policy.RecordVideoTurn(g.store, id, req.Caption, result.Text)

	g.telemetry.RecordRequest(ctx, telemetry.RequestData{
		Kind:      telemetry.KindVideo,
		SessionID: id,
		Input:     req.Caption,
		Duration:  time.Since(start),
		Degraded:  result.Degraded(),
		Error:     result.Err,
	})
	telemetry.EndSpan(span, result.Err)
	return result
}

// analyzeRecovered turns a panic in the upload, wait or respond steps into an
// error so the turn is still recorded and the session lock released.
func (g *VideoGateway) analyzeRecovered(ctx context.Context, id string, req VideoRequest) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[video] session=%s panic during analysis: %v\n%s", id, r, debug.Stack())
			text, err = "", fmt.Errorf("%w: %v", ErrAnalysisPanic, r)
		}
	}()
	return g.analyze(ctx, id, req)
}

func (g *VideoGateway) analyze(ctx context.Context, id string, req VideoRequest) (string, error) {
	contextTurns := g.cfg.Policy.BuildVideoContextSubmission(g.store.Get(id))

	file, err := g.upload(ctx, id, req.Path)
	if err != nil {
		return "", err
	}
	if err := g.wait(ctx, id, file); err != nil {
		return "", err
	}
	return g.respond(ctx, id, file.ID, req.Caption, contextTurns)
}

func (g *VideoGateway) upload(ctx context.Context, id, path string) (ark.File, error) {
	ctx, span := g.telemetry.StartSpan(ctx, "gateway.video.upload")
	log.Printf("[video] session=%s uploading %s", id, path)
	file, err := g.client.UploadFile(ctx, path, ark.UploadOptions{Purpose: ark.PurposeUserData, FPS: g.cfg.FPS})
	g.telemetry.RecordUpstream(ctx, telemetry.UpstreamData{Operation: "upload", Error: err})
	if err == nil {
		span.SetAttributes(attribute.String("ark.file_id", file.ID))
		log.Printf("[video] session=%s uploaded as %s", id, file.ID)
	}
	telemetry.EndSpan(span, err)
	return file, err
}

func (g *VideoGateway) wait(ctx context.Context, id string, file ark.File) error {
	ctx, span := g.telemetry.StartSpan(ctx, "gateway.video.wait", attribute.String("ark.file_id", file.ID))
	err := engine.Poll(ctx, g.cfg.Poll, func(ctx context.Context) (bool, error) {
		current, err := g.client.GetFile(ctx, file.ID)
		g.telemetry.RecordUpstream(ctx, telemetry.UpstreamData{Operation: "get_file", Error: err})
		if err != nil {
			return false, err
		}
		if current.Failed() {
			if current.Error != nil && current.Error.Message != "" {
				return false, fmt.Errorf("%w: %s", ark.ErrFileFailed, current.Error.Message)
			}
			return false, ark.ErrFileFailed
		}
		return current.Processed(), nil
	}, func(attempt int, delay time.Duration) {
		log.Printf("[video] session=%s %s still processing, check %d in %s", id, file.ID, attempt+1, delay)
	})
	if err == nil {
		log.Printf("[video] session=%s %s processed", id, file.ID)
	}
	telemetry.EndSpan(span, err)
	return err
}

func (g *VideoGateway) respond(ctx context.Context, id, fileID, caption string, contextTurns []session.Turn) (string, error) {
	ctx, span := g.telemetry.StartSpan(ctx, "gateway.video.analyze", attribute.Int("petchat.context_turns", len(contextTurns)))

	instruction := strings.TrimSpace(caption)
	if instruction == "" {
		instruction = prompts.DefaultRegistry().Text(prompts.IDVideoAnalysis)
	}

	input := make([]ark.InputMessage, 0, len(contextTurns)+1)
	for _, t := range contextTurns {
		input = append(input, ark.InputMessage{Role: string(t.Role), Text: t.Content})
	}
	input = append(input, ark.InputMessage{
		Role:  string(engine.RoleUser),
		Parts: []ark.ContentPart{ark.InputVideo(fileID), ark.InputText(instruction)},
	})

	resp, err := g.client.CreateResponse(ctx, ark.ResponseRequest{Model: g.cfg.Model, Input: input})
	g.telemetry.RecordUpstream(ctx, telemetry.UpstreamData{Operation: "response", Error: err})
	if err != nil {
		telemetry.EndSpan(span, err)
		return "", err
	}
	span.SetAttributes(attribute.Int("petchat.output_tokens", resp.Usage.OutputTokens))
	telemetry.EndSpan(span, nil)
	log.Printf("[video] session=%s analysis complete (%d output tokens)", id, resp.Usage.OutputTokens)
	return resp.OutputText(), nil
}

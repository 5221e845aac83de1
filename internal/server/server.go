// Package server exposes the chat and video gateways over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ChamsBouzaiene/petchat/internal/gateway"
	"github.com/ChamsBouzaiene/petchat/internal/media"
	"github.com/ChamsBouzaiene/petchat/internal/session"
	"github.com/ChamsBouzaiene/petchat/internal/telemetry"
)

const (
	defaultService    = "petchat"
	defaultMaxJSON    = int64(1 << 20) // 1 MiB
	multipartOverhead = int64(1 << 20) // form fields and part headers around the video
	multipartMemory   = int64(32 << 20)
)

// ChatService runs a text turn.
type ChatService interface {
	Complete(ctx context.Context, sessionID, message string) (gateway.Result, error)
}

// VideoService runs a video turn.
type VideoService interface {
	Analyze(ctx context.Context, req gateway.VideoRequest) gateway.Result
}

// SessionStore is the part of session.Store the handlers read and reset.
type SessionStore interface {
	Get(sessionID string) []session.Turn
	Clear(sessionID string)
	Count() int
}

// Options wires a Server.
type Options struct {
	Chat      ChatService
	Video     VideoService
	Store     SessionStore
	Media     *media.Storage
	Telemetry *telemetry.Manager // may be nil

	Service       string // reported by /health
	Provider      string
	APIConfigured bool

	// GatewayTimeout bounds a whole gateway call; 0 leaves it unbounded.
	GatewayTimeout time.Duration
	// StaticDir, when set, is served at /.
	StaticDir string
}

// Server routes HTTP requests to the gateways.
type Server struct {
	opts    Options
	handler http.Handler
	now     func() time.Time
}

// New validates opts and builds the handler chain.
func New(opts Options) (*Server, error) {
	switch {
	case opts.Chat == nil:
		return nil, errors.New("server: chat service is required")
	case opts.Video == nil:
		return nil, errors.New("server: video service is required")
	case opts.Store == nil:
		return nil, errors.New("server: session store is required")
	case opts.Media == nil:
		return nil, errors.New("server: media storage is required")
	}
	if opts.Service == "" {
		opts.Service = defaultService
	}

	s := &Server{opts: opts, now: time.Now}
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.handler = withRequestID(withCORS(s.instrument(withRecover(mux))))
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// NewHTTPServer returns an http.Server for addr serving s.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	for _, prefix := range []string{"", "/api"} {
		mux.HandleFunc("POST "+prefix+"/chat", s.handleChat)
		mux.HandleFunc("POST "+prefix+"/upload", s.handleUpload)
		mux.HandleFunc("GET "+prefix+"/video/{filename}", s.handleVideo)
		mux.HandleFunc("GET "+prefix+"/health", s.handleHealth)
		mux.HandleFunc("POST "+prefix+"/clear-history", s.handleClearHistory)
		mux.HandleFunc("POST "+prefix+"/history", s.handleHistory)
	}
	if s.opts.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
}

// gatewayContext detaches the gateway call from the client connection so an
// accepted turn is always recorded.
func (s *Server) gatewayContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(r.Context())
	if s.opts.GatewayTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.GatewayTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Server) timestamp() string {
	return s.now().Format(time.RFC3339)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/petchat/internal/config"
	"github.com/ChamsBouzaiene/petchat/internal/engine"
	"github.com/ChamsBouzaiene/petchat/internal/gateway"
	"github.com/ChamsBouzaiene/petchat/internal/media"
	"github.com/ChamsBouzaiene/petchat/internal/prompts"
	"github.com/ChamsBouzaiene/petchat/internal/providers"
	"github.com/ChamsBouzaiene/petchat/internal/server"
	"github.com/ChamsBouzaiene/petchat/internal/session"
	"github.com/ChamsBouzaiene/petchat/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var serveFlags struct {
	addr          string
	uploadDir     string
	staticDir     string
	provider      string
	maxUploadSize string
	otlpEndpoint  string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server. Flags override values from .env, the
PETCHAT_CONFIG file and the environment.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := applyServeFlags(cmd, cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, cmd.OutOrStdout())
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", "", "listen address (default :5000)")
	f.StringVar(&serveFlags.uploadDir, "upload-dir", "", "directory for uploaded videos")
	f.StringVar(&serveFlags.staticDir, "static-dir", "", "serve a frontend from this directory at /")
	f.StringVar(&serveFlags.provider, "provider", "", "text chat provider: ark, anthropic or mock")
	f.StringVar(&serveFlags.maxUploadSize, "max-upload-size", "", `maximum video size, e.g. "100MB"`)
	f.StringVar(&serveFlags.otlpEndpoint, "otlp-endpoint", "", `export traces over OTLP/HTTP ("default" reads OTEL_* variables)`)
	rootCmd.AddCommand(serveCmd)
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = serveFlags.addr
	}
	if flags.Changed("upload-dir") {
		cfg.UploadDir = serveFlags.uploadDir
	}
	if flags.Changed("static-dir") {
		cfg.StaticDir = serveFlags.staticDir
	}
	if flags.Changed("provider") {
		cfg.Provider = strings.ToLower(strings.TrimSpace(serveFlags.provider))
	}
	if flags.Changed("max-upload-size") {
		size, err := config.ParseByteSize(serveFlags.maxUploadSize)
		if err != nil {
			return fmt.Errorf("%w: --max-upload-size: %v", config.ErrInvalidConfig, err)
		}
		cfg.MaxUploadSize = size
	}
	if flags.Changed("otlp-endpoint") {
		cfg.OTLPEndpoint = serveFlags.otlpEndpoint
	}
	return cfg.Validate()
}

// app holds everything serve starts and stops.
type app struct {
	cfg       *config.Config
	telemetry *telemetry.Manager
	store     *session.Store
	server    *server.Server
	selection providers.Selection
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	tm, err := telemetry.NewManager(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	settings := cfg.ProviderSettings()
	selection, err := providers.NewLLMClient(settings)
	if err != nil {
		_ = tm.Shutdown(ctx)
		return nil, err
	}
	videoClient, live := providers.NewVideoClient(settings)
	if !live {
		log.Printf("[video] ARK_API_KEY not set, using simulated video analysis")
	}

	storage, err := media.NewStorage(cfg.UploadDir, int64(cfg.MaxUploadSize))
	if err != nil {
		_ = tm.Shutdown(ctx)
		return nil, err
	}

	store := session.NewStore()
	policy := cfg.HistoryPolicy()

	systemPrompt := cfg.SystemPrompt
	if strings.EqualFold(strings.TrimSpace(systemPrompt), "default") {
		systemPrompt = prompts.DefaultRegistry().Text(prompts.IDSystem)
	}

	chat := gateway.NewChatGateway(selection.Client, store, gateway.ChatConfig{
		Model:        selection.Model,
		SystemPrompt: systemPrompt,
		Options:      engine.ChatOptions{Temperature: 0.7},
		Policy:       policy,
	}, tm)
	video := gateway.NewVideoGateway(videoClient, store, gateway.VideoConfig{
		Model:  cfg.VideoModel(),
		FPS:    cfg.VideoFPS,
		Poll:   cfg.PollPolicy(),
		Policy: policy,
	}, tm)

	srv, err := server.New(server.Options{
		Chat:           chat,
		Video:          video,
		Store:          store,
		Media:          storage,
		Telemetry:      tm,
		Service:        serviceName,
		Provider:       selection.Provider,
		APIConfigured:  selection.Configured,
		GatewayTimeout: cfg.GatewayTimeout,
		StaticDir:      cfg.StaticDir,
	})
	if err != nil {
		_ = store.Close()
		_ = tm.Shutdown(ctx)
		return nil, err
	}

	return &app{cfg: cfg, telemetry: tm, store: store, server: srv, selection: selection}, nil
}

func (a *app) banner() string {
	return renderBanner(bannerInfo{
		Addr:          a.cfg.Addr,
		UploadDir:     a.cfg.UploadDir,
		MaxSize:       int64(a.cfg.MaxUploadSize),
		Provider:      a.selection.Provider,
		Model:         a.selection.Model,
		VideoModel:    a.cfg.VideoModel(),
		APIConfigured: a.selection.Configured,
	})
}

func (a *app) close(ctx context.Context) error {
	return errors.Join(a.store.Close(), a.telemetry.Shutdown(ctx))
}

func serve(ctx context.Context, cfg *config.Config, out io.Writer) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, a.banner())

	httpServer := a.server.NewHTTPServer(cfg.Addr)
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[http] listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_ = a.close(context.Background())
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var result error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		result = fmt.Errorf("graceful shutdown failed: %w", err)
	}
	result = errors.Join(result, a.close(shutdownCtx))
	log.Println("server exited cleanly")
	return result
}

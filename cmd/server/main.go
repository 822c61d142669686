package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docchat/internal/api"
	"github.com/dgallion1/docchat/internal/chunker"
	"github.com/dgallion1/docchat/internal/config"
	"github.com/dgallion1/docchat/internal/embed"
	"github.com/dgallion1/docchat/internal/extract"
	"github.com/dgallion1/docchat/internal/index"
	"github.com/dgallion1/docchat/internal/parser"
	"github.com/dgallion1/docchat/internal/retriever"
	"github.com/dgallion1/docchat/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	metric, err := index.ParseMetric(cfg.IndexMetric)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize collaborators.
	embedder, err := newEmbedder(cfg)
	if err != nil {
		log.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}

	var extractor extract.Extractor = extract.NewLexicalExtractor()
	var claude *extract.ClaudeExtractor
	if cfg.Extractor == config.ExtractorClaude {
		claude = extract.NewClaudeExtractor(cfg.AnthropicAPIKey, cfg.AnthropicModel, extract.WithLogger(log))
		extractor = claude
	}

	answers := retriever.New(embedder, extractor, retriever.Config{
		TopK:         cfg.TopK,
		PreviewChars: cfg.ContextPreviewChars,
	}, log)

	// Initialize sessions.
	sessions := session.NewStore(session.Deps{
		Retriever: answers,
		Parser:    &parser.Extractor{PDFFallback: cfg.PDFFallbackPdftotext, Log: log},
		Chunking:  chunker.Config{MaxChars: cfg.ChunkMaxChars, Overlap: cfg.ChunkOverlap},
		Metric:    metric,
		Log:       log,
	}, cfg.SessionTTL, cfg.MaxSessions)
	sessions.Start(ctx, 5*time.Minute)

	// Initialize HTTP server.
	srv := api.NewServer(sessions, answers, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		log.Error("listen failed", "error", err)
		os.Exit(1)
	}

	log.Info("starting docchat",
		"port", cfg.Port,
		"embedder", embedder.Model(),
		"extractor", cfg.Extractor,
		"metric", metric,
	)
	err = serve(ctx, httpServer, ln, cfg.ShutdownTimeout, log, sessions.Stop, func() {
		if claude != nil {
			claude.Close()
		}
	})
	if err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// serve runs srv on ln until ctx is done, then shuts it down and runs
// cleanup in order. It returns only after every cleanup func has finished.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration, log *slog.Logger, cleanup ...func()) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown incomplete", "error", err)
		}
		for _, fn := range cleanup {
			fn()
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

func newEmbedder(cfg config.Config) (embed.Embedder, error) {
	if cfg.Embedder == config.EmbedderOpenAI {
		return embed.NewOpenAIEmbedder(embed.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIEmbedModel,
			Dimensions: cfg.EmbedDimensions,
			Normalize:  cfg.EmbedNormalize,
		})
	}
	return embed.NewHashEmbedder(cfg.EmbedDimensions, cfg.EmbedNormalize), nil
}

package cli

import (
	"fmt"
	"net/http"

	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/open-assistants-lab/executive-assistant-sub000/internal/config"
	"github.com/open-assistants-lab/executive-assistant-sub000/internal/logger"
	"github.com/open-assistants-lab/executive-assistant-sub000/internal/observability"
	"github.com/open-assistants-lab/executive-assistant-sub000/internal/tracing"
	"github.com/open-assistants-lab/executive-assistant-sub000/pkg/memory"
)

// runtime holds everything a command needs to reach one user's store.
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	sessions *memory.Sessions
	store    *memory.Store
}

// openRuntime loads config, sets up logging and tracing, and opens the
// store for the user named by --user.
func openRuntime() (*runtime, error) {
	if userID == "" {
		return nil, fmt.Errorf("--user is required")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName); err != nil {
			lg.Warn().Err(err).Msg("Failed to initialize tracing")
		}
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Addr, observability.MetricsHandler()); err != nil {
				log.Warn().Err(err).Str("addr", cfg.Metrics.Addr).Msg("Metrics endpoint stopped")
			}
		}()
	}

	var embedder memory.EmbeddingProvider
	if cfg.Embedding.Provider == "openai" {
		var opts []option.RequestOption
		if cfg.Embedding.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.Embedding.BaseURL))
		}
		embedder = memory.NewOpenAIProvider(cfg.Embedding.APIKey, cfg.Embedding.Model, opts...)
	}

	sessions, err := memory.NewSessions(memory.SessionsConfig{
		DataDir:  cfg.DataDir,
		Capacity: cfg.Store.CacheSize,
		Logger:   lg.GetZerolog(),
		Embedder: embedder,
	})
	if err != nil {
		lg.Close()
		return nil, err
	}

	store, err := sessions.Acquire(userID)
	if err != nil {
		sessions.Close()
		lg.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, log: lg, sessions: sessions, store: store}, nil
}

func (r *runtime) close() {
	r.sessions.Close()
	r.log.Close()
}

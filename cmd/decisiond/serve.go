package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyrsmithlabs/decisiond/internal/capability"
	"github.com/fyrsmithlabs/decisiond/internal/config"
	"github.com/fyrsmithlabs/decisiond/internal/events"
	httpserver "github.com/fyrsmithlabs/decisiond/internal/http"
	"github.com/fyrsmithlabs/decisiond/internal/intake"
	"github.com/fyrsmithlabs/decisiond/internal/logging"
	"github.com/fyrsmithlabs/decisiond/internal/pending"
	"github.com/fyrsmithlabs/decisiond/internal/recordstore"
	"github.com/fyrsmithlabs/decisiond/internal/scrub"
	"github.com/fyrsmithlabs/decisiond/internal/slack"
	"github.com/fyrsmithlabs/decisiond/internal/telemetry"
	"github.com/fyrsmithlabs/decisiond/internal/workflow"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
)

const (
	pendingSweepInterval = time.Minute
	// Slack's Web API allows roughly one message per second per channel.
	slackRateLimit = 1.0
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack events server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info(ctx, "starting decisiond",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("store_provider", cfg.Store.Provider),
		zap.Bool("telemetry", cfg.Telemetry.Enabled))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	registry := pending.NewRegistry(cfg.Workflow.PendingTTL.Duration())

	router, err := workflow.NewRouter(workflow.Deps{
		Capabilities:        deps.capabilities,
		Store:               deps.store,
		Poster:              deps.slack,
		Pending:             registry,
		Events:              deps.publisher,
		Logger:              logger.Named("workflow"),
		Tracer:              tel.Tracer("github.com/fyrsmithlabs/decisiond/internal/workflow"),
		SimilarityThreshold: cfg.Workflow.SimilarityThreshold,
	})
	if err != nil {
		return err
	}
	go router.SweepPending(ctx, pendingSweepInterval)

	scrubber, err := scrub.New(cfg.Scrub)
	if err != nil {
		return fmt.Errorf("scrub rules: %w", err)
	}
	processor, err := intake.NewProcessor(deps.slack, deps.capabilities, router, logger, intake.WithScrubber(scrubber))
	if err != nil {
		return err
	}

	srv, err := httpserver.NewServer(slack.NewVerifier(cfg.Slack.SigningSecret.Value()), processor, logger, &httpserver.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		BodyLimit:    cfg.Server.BodyLimit,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		EventTimeout: cfg.Workflow.EventTimeout.Duration(),
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "shutdown incomplete", zap.Error(err))
	}
	logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}

func initLogger(cfg *config.Config) (*logging.Logger, error) {
	lc, err := logging.FromAppConfig(cfg.Logging, cfg.Telemetry.Enabled)
	if err != nil {
		return nil, err
	}
	lc.Fields = map[string]string{"service": cfg.Telemetry.ServiceName, "version": version}
	return logging.NewLogger(lc, global.GetLoggerProvider())
}

type dependencies struct {
	store        recordstore.Store
	closeStore   func() error
	capabilities *capability.LLM
	slack        *slack.Client
	natsConn     *nats.Conn
	publisher    events.Publisher
	logger       *logging.Logger
}

func (d *dependencies) Close() {
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.closeStore != nil {
		if err := d.closeStore(); err != nil {
			d.logger.Warn(context.Background(), "closing record store", zap.Error(err))
		}
	}
}

func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	d := &dependencies{publisher: events.Nop{}, logger: logger}

	store, closeStore, err := recordstore.NewStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	d.store, d.closeStore = store, closeStore
	logger.Info(ctx, "record store ready", zap.String("provider", cfg.Store.Provider))

	model, err := capability.NewModel(cfg.LLM)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	d.capabilities, err = capability.New(model, capabilityConfig(cfg), logger)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.slack, err = slack.NewClient(slack.ClientConfig{
		Token:     cfg.Slack.BotToken.Value(),
		BaseURL:   cfg.Slack.APIBaseURL,
		RateLimit: slackRateLimit,
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	if id, err := d.slack.BotUserID(ctx); err != nil {
		logger.Warn(ctx, "slack auth check failed", zap.Error(err))
	} else {
		logger.Info(ctx, "slack client ready", zap.String("bot_user_id", id))
	}

	if cfg.Events.NATSURL != "" {
		nc, err := events.Connect(cfg.Events.NATSURL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.natsConn = nc
		d.publisher = events.NewNATSPublisher(nc, cfg.Events.SubjectPrefix)
		logger.Info(ctx, "publishing decision events", zap.String("url", cfg.Events.NATSURL))
	}

	return d, nil
}

func capabilityConfig(cfg *config.Config) capability.Config {
	c := capability.DefaultConfig()
	if d := cfg.LLM.Timeout.Duration(); d > 0 {
		c.Timeout = d
	}
	c.RateLimit = cfg.LLM.RateLimit
	if cfg.LLM.MaxTokens > 0 {
		c.MaxTokens = cfg.LLM.MaxTokens
	}
	c.ExtractionThreshold = cfg.Workflow.ExtractionThreshold
	c.UpdateThreshold = cfg.Workflow.UpdateThreshold
	c.SummaryThreshold = cfg.Workflow.SummaryThreshold
	return c
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cleancity/backend/internal/analysis"
	"cleancity/backend/internal/api/handler"
	"cleancity/backend/internal/auth"
	"cleancity/backend/internal/blob"
	"cleancity/backend/internal/complaint"
	"cleancity/backend/internal/config"
	"cleancity/backend/internal/detector"
	"cleancity/backend/internal/eventhub"
	"cleancity/backend/internal/geocode"
	"cleancity/backend/internal/localization"
	"cleancity/backend/internal/metrics"
	"cleancity/backend/internal/observability"
	"cleancity/backend/internal/scoring"
	"cleancity/backend/internal/storage"
	"cleancity/backend/internal/telegram"
	"cleancity/backend/internal/verdict"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(os.Getenv("CLEANCITY_CONFIG"))
	if err != nil {
		observability.GetLogger().Fatal("Failed to load configuration", zap.Error(err))
	}
	observability.InitializeLogger(cfg.Logger)
	defer observability.Sync()
	logger := observability.GetLogger()
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting CleanCity backend", zap.String("pipeline", cfg.Evidence.Pipeline))

	// 1. Storage
	store, err := storage.Open(ctx, cfg.Database, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	images, err := blob.New(ctx, cfg.Blob)
	if err != nil {
		logger.Fatal("Failed to initialize blob store", zap.Error(err))
	}

	// 2. Evidence, scoring and lifecycle
	pipeline, err := setupPipeline(ctx, cfg, images, logger)
	if err != nil {
		logger.Fatal("Failed to initialize evidence pipeline", zap.Error(err))
	}
	scorer := scoring.NewEngine(store, cfg.Evidence.HistoryTimeout, logger.Named("scoring"))

	svc := complaint.NewService(store, pipeline, scorer, logger.Named("complaint"))
	svc.Images = images
	svc.GeocodeTimeout = cfg.Evidence.GeocodeTimeout
	svc.NotifyTimeout = cfg.Evidence.NotifyTimeout
	if cfg.Geocode.Enabled {
		svc.Geocoder = geocode.NewClient(cfg.Geocode, store, &http.Client{}, logger.Named("geocode"))
	}

	tokens := auth.NewTokens(cfg.Auth)

	// 3. Telegram notifications are optional
	if cfg.Telegram.Token != "" {
		localizer, err := localization.NewLocalizer(cfg.Telegram.LocalesDir)
		if err != nil {
			logger.Fatal("Failed to load translations", zap.Error(err))
		}
		bot, err := telegram.NewBotService(cfg.Telegram.Token, store, tokens, localizer, logger.Named("telegram"))
		if err != nil {
			logger.Fatal("Failed to start Telegram bot", zap.Error(err))
		}
		svc.Notifier = bot.Notifier()
		go bot.Run(ctx)
	} else {
		logger.Warn("telegram.token is empty, assignment notifications are disabled")
	}

	// 4. Live events: Redis pub/sub feeds the websocket hub
	hub := eventhub.NewHub(logger.Named("eventhub"))
	go hub.Run(ctx)
	pubsub := store.Subscribe(ctx)
	defer pubsub.Close()
	go hub.Listen(ctx, pubsub.Channel())

	// 5. HTTP
	gin.SetMode(gin.ReleaseMode)
	authn := &auth.Authenticator{Tokens: tokens, Users: store}
	h := handler.NewHandler(svc, authn, images, hub, cfg.Server.MaxUploadBytes, logger.Named("http"))

	server := &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        h.Router(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// setupPipeline builds the configured evidence pipeline. Exactly one runs.
func setupPipeline(ctx context.Context, cfg *config.Config, images *blob.Store, logger *zap.Logger) (analysis.Pipeline, error) {
	switch cfg.Evidence.Pipeline {
	case config.PipelineAIVerdict:
		reasoner, err := verdict.NewGemini(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		return &analysis.VerdictPipeline{
			Images:   images,
			Reasoner: reasoner,
			Timeout:  cfg.Evidence.VerdictTimeout,
			Logger:   logger.Named("verdict"),
		}, nil
	default:
		vision, err := detector.NewVision(cfg.Vision, &http.Client{})
		if err != nil {
			return nil, err
		}
		return &analysis.LabelObjectPipeline{
			Images:   images,
			Detector: vision,
			Timeout:  cfg.Evidence.DetectorTimeout,
			Logger:   logger.Named("detector"),
		}, nil
	}
}

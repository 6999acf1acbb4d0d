package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shelflife/internal/config"
	"shelflife/internal/handler"
	"shelflife/internal/inference"
	"shelflife/internal/llm"
	"shelflife/internal/narrative"
	"shelflife/internal/repository"
	"shelflife/internal/service"
	"shelflife/internal/voice"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config")
	issueFor := flag.String("issue-token", "", "print an API token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of an issued token")
	flag.Parse()

	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if *issueFor != "" {
		if cfg.Auth.JWTSecret == "" {
			logger.Fatal("auth.jwt_secret is not set")
		}
		token, err := handler.IssueToken([]byte(cfg.Auth.JWTSecret), *issueFor, "client", *tokenTTL)
		if err != nil {
			logger.Fatal("Failed to issue token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	logger.Info("Starting Shelf Life Service...")

	ctx := context.Background()

	// Load the trained pipeline; the service still starts without one.
	var predictor service.Predictor
	store, err := cfg.ArtifactStore(ctx, logger)
	if err != nil {
		logger.Fatal("Failed to open artifact store", zap.Error(err))
	}
	pipeline, err := inference.Load(ctx, store, cfg.Artifacts.Keys, cfg.Inference, logger)
	if err != nil {
		logger.Error("Model not loaded, prediction endpoints will report unavailable", zap.Error(err))
	} else {
		predictor = pipeline
	}

	// Initialize repositories
	var (
		history service.History
		runs    service.RunSource
	)
	db, err := repository.Open(cfg.Database.Type, cfg.Database.Path, logger)
	if err != nil {
		logger.Warn("Prediction history disabled", zap.Error(err))
	} else {
		defer db.Close()
		history = repository.NewPredictionRepository(db, logger)
		runs = repository.NewTrainingRunRepository(db, logger)
	}

	// Chat advisor (multi-provider with rate limiting)
	var completer narrative.Completer
	if len(cfg.Providers) > 0 {
		multiClient, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
			Providers:   cfg.Providers,
			MaxFailures: cfg.MaxFailuresBeforeSwitch,
		}, logger)
		if err != nil {
			logger.Warn("Chat providers unavailable", zap.Error(err))
		} else {
			defer multiClient.Close()
			completer = multiClient
			logger.Info("Multi-provider client initialized",
				zap.Any("providers", multiClient.GetProvidersInfo()))
		}
	}

	// Voice narration
	var synthesizer narrative.Synthesizer
	if cfg.Voice.APIKey != "" {
		voiceClient, err := voice.NewClient(cfg.Voice, logger)
		if err != nil {
			logger.Warn("Voice narration unavailable", zap.Error(err))
		} else {
			defer voiceClient.Close()
			synthesizer = voiceClient

			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if voices, err := voiceClient.Voices(checkCtx); err != nil {
				logger.Warn("Could not list ElevenLabs voices", zap.Error(err))
			} else {
				logger.Info("ElevenLabs voices available", zap.Int("count", len(voices)))
			}
			cancel()
		}
	}

	shelfLife := service.NewShelfLife(
		predictor,
		history,
		runs,
		narrative.NewAdvisor(completer, logger),
		narrative.NewNarrator(synthesizer, logger),
		logger,
	)

	apiHandler := handler.NewHandler(shelfLife, cfg.Auth.JWTSecret, logger)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.Use(handler.CORSMiddleware())
	apiHandler.RegisterRoutes(router)

	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	status := shelfLife.Status()
	logger.Info("Shelf Life Service is running",
		zap.String("address", serverAddr),
		zap.Bool("pipeline_loaded", status.PipelineLoaded),
		zap.Bool("chat_available", status.ChatAvailable),
		zap.Bool("voice_available", status.VoiceAvailable),
		zap.Bool("auth_enabled", cfg.Auth.JWTSecret != ""))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storyforge/auth"
	"storyforge/bootstrap"
	"storyforge/config"
	"storyforge/db"
	"storyforge/generator"
	"storyforge/handlers"
	"storyforge/logger"
	"storyforge/repository"
)

func main() {
	log := logger.New("storyforge")

	cfg, foundEnv, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if !foundEnv {
		log.Warn().Msg(".env file not found, using environment variables")
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("database", cfg.MongoDBDatabase).
		Int("http_port", cfg.Port).
		Msg("storyforge starting")

	ctx := context.Background()
	collections := cfg.Collections()

	// -------- Storage layer -----------------
	manager := db.NewManager(db.Options{
		URI:            cfg.MongoDBURI,
		Database:       cfg.MongoDBDatabase,
		ConnectTimeout: cfg.DBConnectTimeout,
		Indexes:        repository.IndexSpecs(collections),
	}, log, db.WithFallbackSeed(bootstrap.FallbackSeed(collections)))

	if err := manager.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("Storage unavailable")
	}
	if manager.Mode() == db.ModeFallback && cfg.IsProduction() {
		log.Warn().Msg("serving from the in-memory fallback store in production, data will not survive a restart")
	}

	// -------- Story generator --------------
	var gen generator.Generator = generator.Disabled{}
	if g, err := generator.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log); err == nil {
		gen = g
	} else {
		log.Warn().Err(err).Msg("story generation disabled")
	}

	// -------- Router & Server --------------
	// Production trusts gateway-issued bearer tokens as user ids; the X-User-ID
	// shortcut is development only.
	verifier := auth.NewVerifier(cfg.IsProduction())
	repo := repository.New(manager, collections, log)
	h := handlers.New(repo, gen, manager, log)
	server := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      handlers.NewRouter(h, verifier, cfg.Origins(), log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := manager.Close(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("Failed to close storage")
	}
	log.Info().Msg("Server exited")
}

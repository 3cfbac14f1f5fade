package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"quicklist/internal/app"
	"quicklist/internal/config"
	"quicklist/internal/server"
	"quicklist/internal/usertoken"
	"quicklist/internal/util"
	"quicklist/pkg/ai"
	"quicklist/pkg/storage"
	"quicklist/pkg/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		fatal("failed to init store", err)
	}

	advisor, err := ai.NewOpenAIVisionAdvisor(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		fatal("failed to init advisor", err)
	}

	images, err := storage.NewMinioImageStore(
		cfg.MinioEndpoint,
		cfg.MinioAccessKey,
		cfg.MinioSecretKey,
		cfg.MinioBucket,
		cfg.MinioPublicBaseURL,
		cfg.MinioUseSSL,
	)
	if err != nil {
		fatal("failed to init image store", err)
	}

	tokens, err := usertoken.New(usertoken.Config{
		Secret:         cfg.JWTSecret,
		TTL:            time.Duration(cfg.JWTTTLHours) * time.Hour,
		AllowAnonymous: cfg.AllowAnonymous,
	})
	if err != nil {
		fatal("failed to init token issuer", err)
	}

	appCore, err := app.New(app.Config{
		Store:          st,
		Advisor:        advisor,
		Images:         images,
		AdvisorTimeout: time.Duration(cfg.AdvisorTimeoutSeconds) * time.Second,
		StorageTimeout: time.Duration(cfg.StorageTimeoutSeconds) * time.Second,
		MaxImages:      cfg.MaxImages,
		MaxImageBytes:  int64(cfg.MaxImageMB) << 20,
	})
	if err != nil {
		fatal("failed to init app", err)
	}

	httpServer, err := server.New(server.Config{
		App:    appCore,
		Tokens: tokens,
		Services: server.HealthServices{
			Database: cfg.DatabaseURL != "",
			Storage:  cfg.MinioEndpoint != "",
			Advisor:  cfg.OpenAIAPIKey != "",
		},
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		SignupRateLimitPerMinute:   cfg.SignupRatePerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRatePerMinute,
		GenerateRateLimitPerMinute: cfg.GenerateRatePerMinute,
		MaxUploadBytes:             int64(cfg.MaxImages*cfg.MaxImageMB) << 20,
	})
	if err != nil {
		fatal("failed to init server", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("marketplace server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fatal("server error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

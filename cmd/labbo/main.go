package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/labbo/internal/database"
	"github.com/dukerupert/labbo/internal/email"
	"github.com/dukerupert/labbo/internal/handler"
	"github.com/dukerupert/labbo/internal/logging"
	"github.com/dukerupert/labbo/internal/media"
	"github.com/dukerupert/labbo/internal/middleware"
	"github.com/dukerupert/labbo/internal/server"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("LABBO_LOG_LEVEL"), os.Getenv("LABBO_LOG_FORMAT"))

	port := os.Getenv("LABBO_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("LABBO_DB_PATH")
	if dbPath == "" {
		dbPath = "labbo.db"
	}

	baseURL := os.Getenv("LABBO_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", port)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Email config. Verification is only enforced when mail can be sent.
	emailClient := email.NewClient(os.Getenv("LABBO_POSTMARK_TOKEN"), os.Getenv("LABBO_FROM_EMAIL"), baseURL)
	var mailer handler.Mailer
	if emailClient.Configured() {
		mailer = emailClient
	} else {
		slog.Warn("email not configured, skipping verification and reset mail")
	}

	proxies, err := middleware.ParseTrustedProxies(splitList(os.Getenv("LABBO_TRUSTED_PROXIES")))
	if err != nil {
		slog.Error("invalid LABBO_TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}

	cfg := server.Config{
		SecureCookies:   envBool("LABBO_SECURE_COOKIES"),
		AllowedOrigins:  splitList(os.Getenv("LABBO_ALLOWED_ORIGINS")),
		VAPIDPublicKey:  os.Getenv("LABBO_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("LABBO_VAPID_PRIVATE_KEY"),
		PushSubscriber:  os.Getenv("LABBO_VAPID_SUBSCRIBER"),
		Media: media.Config{
			Endpoint:  os.Getenv("LABBO_S3_ENDPOINT"),
			Bucket:    os.Getenv("LABBO_S3_BUCKET"),
			Region:    os.Getenv("LABBO_S3_REGION"),
			AccessKey: os.Getenv("LABBO_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("LABBO_S3_SECRET_KEY"),
		},
		TrustedProxies: proxies,
	}

	srv := server.New(db, mailer, cfg, logger)
	defer srv.Close()

	if envBool("LABBO_SEED_DEMO") {
		n, err := srv.SeedDemoAccounts()
		if err != nil {
			slog.Error("seed demo accounts", "error", err)
		} else if n > 0 {
			slog.Info("demo accounts created", "count", n)
		}
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	srv.PushScheduler().Start(bgCtx)
	go srv.RunCleanup(bgCtx, time.Hour)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("labbo starting", "addr", ":"+port, "base_url", baseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	srv.PushScheduler().Stop()
	bgCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

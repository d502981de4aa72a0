package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/vantage/server/internal/auth"
	"github.com/vantage/server/internal/config"
	"github.com/vantage/server/internal/db"
	httphandler "github.com/vantage/server/internal/http"
	"github.com/vantage/server/internal/http/handlers"
	"github.com/vantage/server/internal/mail"
	"github.com/vantage/server/internal/repo"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	userRepo := repo.NewUserRepo(database)
	otpRepo := repo.NewOtpRepo(database)
	sessionRepo := repo.NewSessionRepo(database)
	feedbackRepo := repo.NewFeedbackRepo(database)

	// Mail goes through a background dispatcher so slow providers never delay
	// a response.
	var sender mail.Sender
	if cfg.DevMode || cfg.SendGridAPIKey == "" {
		if !cfg.DevMode {
			log.Println("SENDGRID_API_KEY not set, falling back to log-only mail sender")
		}
		sender = mail.LogSender{}
	} else {
		sender = mail.NewSendGridSender(cfg.SendGridAPIKey, cfg.SenderEmail)
	}
	dispatcher := mail.NewDispatcher(sender, 64)
	defer dispatcher.Close()

	// Auth services
	otpService := auth.NewOtpService(otpRepo, cfg.OTPSalt)
	authService := auth.NewService(userRepo, sessionRepo, otpService, dispatcher)

	// Handlers
	cookie := handlers.CookieConfig{Name: cfg.CookieName, Secure: cfg.CookieSecure}
	authHandler := handlers.NewAuthHandler(authService, cookie)
	diagHandler := handlers.NewDiagHandler()
	feedbackHandler := handlers.NewFeedbackHandler(feedbackRepo, dispatcher, cfg.AdminEmail)

	router := httphandler.NewRouter(authHandler, diagHandler, feedbackHandler, httphandler.RouterConfig{
		SessionResolver: authService,
		CookieName:      cfg.CookieName,
		RateLimitRPS:    cfg.RateLimitRPS,
		RateLimitBurst:  cfg.RateLimitBurst,
	})

	// Generous write timeout: the speed test endpoint holds the response open
	// while it measures.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

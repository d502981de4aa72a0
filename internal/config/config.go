package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string
	OTPSalt     string
	DevMode     bool

	// Session cookie
	CookieName   string
	CookieSecure bool

	// Abuse guard (per-IP token bucket)
	RateLimitRPS   float64
	RateLimitBurst int

	// Outbound email
	SendGridAPIKey string
	AdminEmail     string
	SenderEmail    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           "8080",
		CookieName:     "vantage_session",
		RateLimitRPS:   2,
		RateLimitBurst: 10,
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	otpSalt := os.Getenv("OTP_SALT")
	if otpSalt == "" {
		return nil, fmt.Errorf("OTP_SALT environment variable is required")
	}
	cfg.OTPSalt = otpSalt

	cfg.DevMode = os.Getenv("DEV_MODE") == "true"

	if name := os.Getenv("SESSION_COOKIE_NAME"); name != "" {
		cfg.CookieName = name
	}
	// Secure cookies default to on outside dev mode.
	cfg.CookieSecure = !cfg.DevMode
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		cfg.CookieSecure = v == "true"
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT_RPS must be a positive number, got %q", v)
		}
		cfg.RateLimitRPS = rps
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil || burst <= 0 {
			return nil, fmt.Errorf("RATE_LIMIT_BURST must be a positive integer, got %q", v)
		}
		cfg.RateLimitBurst = burst
	}

	cfg.SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	cfg.AdminEmail = os.Getenv("ADMIN_EMAIL")
	cfg.SenderEmail = os.Getenv("VERIFIED_SENDER_EMAIL")
	if cfg.SenderEmail == "" {
		cfg.SenderEmail = "noreply@example.com"
	}

	return cfg, nil
}

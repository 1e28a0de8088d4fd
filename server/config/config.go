package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// Config holds all configurable engine and transport parameters.
type Config struct {
	HTTPPort int `json:"http_port"`

	DatabaseURL string `json:"database_url"`
	RedisURL    string `json:"redis_url"`

	BoardSize            int `json:"board_size"`
	GamesToWin           int `json:"games_to_win"`
	DisconnectTimeoutSec int `json:"disconnect_timeout_sec"`
	RematchWindowSec     int `json:"rematch_window_sec"`

	AuthBaseURL string `json:"auth_base_url"`

	RatingServiceURL          string `json:"rating_service_url"`
	RatingServiceClientID     string `json:"rating_service_client_id"`
	RatingServiceClientSecret string `json:"rating_service_client_secret"`
	RatingServiceTokenURL     string `json:"rating_service_token_url"`
}

// Defaults returns a Config with every field set to its standard value.
func Defaults() *Config {
	return &Config{
		HTTPPort:             8080,
		BoardSize:            15,
		GamesToWin:           2,
		DisconnectTimeoutSec: 60,
		RematchWindowSec:     600,
	}
}

// Load reads configuration from an optional config.json file, then applies
// environment variable overrides. Fields not set in either source retain
// their default values.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			log.Printf("Warning: failed to parse config.json: %v", err)
		}
	}

	overrideInt(&cfg.HTTPPort, "HTTP_PORT")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.RedisURL, "REDIS_URL")
	overrideInt(&cfg.BoardSize, "BOARD_SIZE")
	overrideInt(&cfg.GamesToWin, "GAMES_TO_WIN")
	overrideInt(&cfg.DisconnectTimeoutSec, "DISCONNECT_TIMEOUT_SEC")
	overrideInt(&cfg.RematchWindowSec, "REMATCH_WINDOW_SEC")
	overrideString(&cfg.AuthBaseURL, "AUTH_BASE_URL")
	overrideString(&cfg.RatingServiceURL, "RATING_SERVICE_URL")
	overrideString(&cfg.RatingServiceClientID, "RATING_SERVICE_CLIENT_ID")
	overrideString(&cfg.RatingServiceClientSecret, "RATING_SERVICE_CLIENT_SECRET")
	overrideString(&cfg.RatingServiceTokenURL, "RATING_SERVICE_TOKEN_URL")

	return cfg
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

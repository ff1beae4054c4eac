package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"valorant-scout/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Region is a rectangular screen area in desktop coordinates.
type Region struct {
	Left   int
	Top    int
	Width  int
	Height int
}

type Config struct {
	GridAPIKey   string
	GridSeriesID string

	PollInterval  time.Duration
	HistorySize   int
	HistoryPath   string
	DBPath        string
	ServerPort    string
	LogLevel      string
	OllamaURL     string
	VLMModel      string
	ClassifyRate  float64
	EventCooldown time.Duration

	// Screen geometry for the visual channel. Defaults assume 1920x1080.
	KillfeedRegion  Region
	RoundEndRegion  Region
	DownscaleFactor float64

	// Weapons whose pickup counts as a buy-strength upgrade.
	PremiumWeapons []string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		GridAPIKey:      getEnv("GRID_API_KEY", ""),
		GridSeriesID:    getEnv("GRID_SERIES_ID", ""),
		PollInterval:    getEnvDuration("POLL_INTERVAL", constants.DefaultPollInterval),
		HistorySize:     getEnvInt("HISTORY_SIZE", constants.DefaultHistorySize),
		HistoryPath:     getEnv("HISTORY_PATH", "data/history.json"),
		DBPath:          getEnv("DB_PATH", "scout.db"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434/api/generate"),
		VLMModel:        getEnv("VLM_MODEL", "qwen3-vl:2b"),
		ClassifyRate:    getEnvFloat("CLASSIFY_RATE", constants.DefaultClassifyRate),
		EventCooldown:   getEnvDuration("EVENT_COOLDOWN", constants.DefaultEventCooldown),
		KillfeedRegion:  getEnvRegion("KILLFEED_REGION", Region{Left: 1240, Top: 40, Width: 640, Height: 260}),
		RoundEndRegion:  getEnvRegion("ROUND_END_REGION", Region{Left: 350, Top: 260, Width: 1220, Height: 340}),
		DownscaleFactor: getEnvFloat("DOWNSCALE_FACTOR", constants.DefaultDownscaleFactor),
		PremiumWeapons:  getEnvList("PREMIUM_WEAPONS", []string{"Vandal", "Phantom", "Operator"}),
	}

	if cfg.GridAPIKey == "" {
		return nil, fmt.Errorf("GRID_API_KEY is required")
	}
	if cfg.GridSeriesID == "" {
		return nil, fmt.Errorf("GRID_SERIES_ID is required")
	}
	if cfg.HistorySize <= 0 {
		return nil, fmt.Errorf("HISTORY_SIZE must be positive, got %d", cfg.HistorySize)
	}
	if cfg.ClassifyRate <= 0 {
		return nil, fmt.Errorf("CLASSIFY_RATE must be positive, got %v", cfg.ClassifyRate)
	}

	logger.Info().
		Str("series_id", cfg.GridSeriesID).
		Dur("poll_interval", cfg.PollInterval).
		Int("history_size", cfg.HistorySize).
		Str("history_path", cfg.HistoryPath).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("vlm_model", cfg.VLMModel).
		Float64("classify_rate", cfg.ClassifyRate).
		Dur("event_cooldown", cfg.EventCooldown).
		Msg("configuration loaded")

	return cfg, nil
}

// ClassifyInterval converts the configured rate into the classifier tick period.
func (c *Config) ClassifyInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.ClassifyRate)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvRegion parses "left,top,width,height". Malformed values and
// non-positive dimensions fall back.
func getEnvRegion(key string, fallback Region) Region {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return fallback
	}
	var nums [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fallback
		}
		nums[i] = n
	}
	if nums[2] <= 0 || nums[3] <= 0 {
		return fallback
	}
	return Region{Left: nums[0], Top: nums[1], Width: nums[2], Height: nums[3]}
}

func getEnvList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}

var Module = fx.Provide(Load)

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the risk worker settings, sourced from environment variables
// with an optional .env file for local runs.
type Config struct {
	BusEndpoint string
	BusTopic    string
	BusGroupID  string

	StoreHost string
	StorePort int
	StoreTTL  time.Duration

	RefServiceURL string

	LogLevel string
	WorkerID string
	BumpSize float64

	MetricsAddr string
}

// FeedConfig holds the curve feed settings.
type FeedConfig struct {
	BusEndpoint string
	BusTopic    string

	DataFile    string
	ReplaySpeed float64
	LoopForever bool

	ScenarioFile string

	LogLevel string
}

// Load reads worker configuration from the environment. A .env file in the
// working directory is applied first when present; real environment variables
// win over file entries.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BusEndpoint:   envOr("BUS_ENDPOINT", "localhost:9092"),
		BusTopic:      envOr("BUS_TOPIC", "yield_curve_ticks"),
		BusGroupID:    envOr("BUS_GROUP_ID", "risk-engine"),
		StoreHost:     envOr("STORE_HOST", "localhost"),
		RefServiceURL: envOr("REF_SERVICE_URL", "http://localhost:8000"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		WorkerID:      envOr("WORKER_ID", "worker-1"),
		MetricsAddr:   envOr("METRICS_ADDR", ":9091"),
	}

	port, err := envInt("STORE_PORT", 6379)
	if err != nil {
		return Config{}, err
	}
	cfg.StorePort = port

	ttlSeconds, err := envInt("STORE_TTL", 3600)
	if err != nil {
		return Config{}, err
	}
	cfg.StoreTTL = time.Duration(ttlSeconds) * time.Second

	bump, err := envFloat("BUMP_SIZE", 0.0001)
	if err != nil {
		return Config{}, err
	}
	if bump <= 0 {
		return Config{}, fmt.Errorf("BUMP_SIZE must be positive, got %g", bump)
	}
	cfg.BumpSize = bump

	return cfg, nil
}

// LoadFeed reads curve feed configuration from the environment.
func LoadFeed() (FeedConfig, error) {
	_ = godotenv.Load()

	cfg := FeedConfig{
		BusEndpoint:  envOr("BUS_ENDPOINT", "localhost:9092"),
		BusTopic:     envOr("BUS_TOPIC", "yield_curve_ticks"),
		DataFile:     envOr("DATA_FILE", "data/yield_curves.csv"),
		ScenarioFile: os.Getenv("SCENARIO_FILE"),
		LogLevel:     envOr("LOG_LEVEL", "info"),
	}

	speed, err := envFloat("REPLAY_SPEED", 1.0)
	if err != nil {
		return FeedConfig{}, err
	}
	if speed <= 0 {
		return FeedConfig{}, fmt.Errorf("REPLAY_SPEED must be positive, got %g", speed)
	}
	cfg.ReplaySpeed = speed

	loop, err := envBool("LOOP_FOREVER", true)
	if err != nil {
		return FeedConfig{}, err
	}
	cfg.LoopForever = loop

	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func envFloat(name string, fallback float64) (float64, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

func envBool(name string, fallback bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}

// Package config loads service configuration from an optional YAML file
// with environment variable overrides. Every field has a default, so the
// service runs out of the box in single-node in-memory mode.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// DatabaseURL selects the Postgres store; empty runs on the in-memory
	// store.
	DatabaseURL string `yaml:"database_url"`

	// NATSURL selects the NATS event fabric; empty runs on the in-process
	// fabric.
	NATSURL string `yaml:"nats_url"`

	// PromptServiceURL points at the generative text service; empty runs on
	// the static prompt deck alone.
	PromptServiceURL   string `yaml:"prompt_service_url"`
	PromptServiceToken string `yaml:"prompt_service_token"`

	Room RoomConfig `yaml:"room"`
}

// RoomConfig holds default room settings applied when a create-room request
// leaves fields zero.
type RoomConfig struct {
	MaxPlayersPerGame int `yaml:"max_players_per_game"`
	TotalRounds       int `yaml:"total_rounds"`
	RoundTimeLimitSec int `yaml:"round_time_limit_sec"`
	IntermissionSec   int `yaml:"intermission_sec"`
	BingoSlotsPerGame int `yaml:"bingo_slots_per_game"`
	MinParticipants   int `yaml:"min_participants"`
}

// Load reads the YAML file named by CONFIG_FILE (if set), then applies
// environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     "8080",
		LogLevel: "info",
		Room: RoomConfig{
			MaxPlayersPerGame: 8,
			TotalRounds:       10,
			RoundTimeLimitSec: 20,
			IntermissionSec:   30,
			BingoSlotsPerGame: 3,
			MinParticipants:   4,
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.PromptServiceURL = getEnv("PROMPT_SERVICE_URL", cfg.PromptServiceURL)
	cfg.PromptServiceToken = getEnv("PROMPT_SERVICE_TOKEN", cfg.PromptServiceToken)

	cfg.Room.MaxPlayersPerGame = getEnvAsInt("ROOM_MAX_PLAYERS", cfg.Room.MaxPlayersPerGame)
	cfg.Room.TotalRounds = getEnvAsInt("ROOM_TOTAL_ROUNDS", cfg.Room.TotalRounds)
	cfg.Room.RoundTimeLimitSec = getEnvAsInt("ROOM_ROUND_TIME_LIMIT_SEC", cfg.Room.RoundTimeLimitSec)
	cfg.Room.IntermissionSec = getEnvAsInt("ROOM_INTERMISSION_SEC", cfg.Room.IntermissionSec)
	cfg.Room.BingoSlotsPerGame = getEnvAsInt("ROOM_BINGO_SLOTS", cfg.Room.BingoSlotsPerGame)
	cfg.Room.MinParticipants = getEnvAsInt("ROOM_MIN_PARTICIPANTS", cfg.Room.MinParticipants)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

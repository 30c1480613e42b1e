// Load envs from .env
// Load YAML config
// Provide default values

package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Data
	DataDir string `yaml:"data_dir" env:"VACANCY_DATA_DIR"`
	RunMode string `yaml:"run_mode" env:"VACANCY_RUN_MODE"`

	// Policy knobs
	GraceDays       int     `yaml:"grace_days"`
	DevanagariRatio float64 `yaml:"devanagari_ratio"`
	LinkThreshold   float64 `yaml:"link_threshold"`
	AllowedRegion   string  `yaml:"allowed_region"`
	MinTitleLen     int     `yaml:"min_title_len"`

	// Notification (optional)
	TelegramToken  string `yaml:"telegram_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `yaml:"telegram_chat_id" env:"TELEGRAM_CHAT_ID"`

	// Scheduling / server
	CronSpec   string `yaml:"cron_spec"`
	ServerPort string `yaml:"server_port" env:"PORT"`
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Printf("Warning: Could not read config.yaml: %v", err)
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatalf("Error parsing config.yaml: %v", err)
		}
	}

	//Override with env vars
	if dir := os.Getenv("VACANCY_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if mode := os.Getenv("VACANCY_RUN_MODE"); mode != "" {
		cfg.RunMode = mode
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			log.Fatalf("Invalid TELEGRAM_CHAT_ID: %v", err)
		}
		cfg.TelegramChatID = id
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.ServerPort = port
	}

	//Set default values if not set
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.RunMode == "" {
		cfg.RunMode = "nightly"
	}
	if cfg.GraceDays == 0 {
		cfg.GraceDays = 7
	}
	if cfg.DevanagariRatio == 0 {
		cfg.DevanagariRatio = 0.3
	}
	if cfg.LinkThreshold == 0 {
		cfg.LinkThreshold = 0.6
	}
	if cfg.AllowedRegion == "" {
		cfg.AllowedRegion = "bihar"
	}
	if cfg.MinTitleLen == 0 {
		cfg.MinTitleLen = 4
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	return cfg
}

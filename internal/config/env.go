package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type secrets struct {
	OpenAIKey           string `env:"OPENAI_API_KEY"`
	LumaKey             string `env:"LUMAAI_API_KEY"`
	SupabaseURL         string `env:"SUPABASE_URL"`
	SupabaseAnonKey     string `env:"SUPABASE_ANON_KEY"`
	SupabaseAccessToken string `env:"SUPABASE_ACCESS_TOKEN"`
	DeviceSecret        string `env:"RUYA_DEVICE_SECRET"`
	S3AccessKey         string `env:"RUYA_S3_ACCESS_KEY"`
	S3SecretKey         string `env:"RUYA_S3_SECRET_KEY"`
	DreamLogDSN         string `env:"RUYA_DREAM_LOG_DSN"`
}

// parseEnv loads envFile (or ./.env when empty and present) without
// overriding variables that are already set, then reads the secrets.
func parseEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	var s secrets
	if err := envdecode.Decode(&s); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("decode environment: %w", err)
	}

	setString(&cfg.OpenAIKey, s.OpenAIKey)
	setString(&cfg.LumaKey, s.LumaKey)
	setString(&cfg.SupabaseURL, s.SupabaseURL)
	setString(&cfg.SupabaseAnonKey, s.SupabaseAnonKey)
	setString(&cfg.SupabaseAccessToken, s.SupabaseAccessToken)
	setString(&cfg.DeviceSecret, s.DeviceSecret)
	setString(&cfg.S3AccessKey, s.S3AccessKey)
	setString(&cfg.S3SecretKey, s.S3SecretKey)
	setString(&cfg.DreamLogDSN, s.DreamLogDSN)
	return nil
}

// Package config assembles runtime settings for both binaries from
// defaults, an optional JSON file, command-line flags and the environment.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/ruya/internal/flagx"
	"github.com/dmitrijs2005/ruya/internal/interpret"
	"github.com/dmitrijs2005/ruya/internal/videogen"
)

// Config holds runtime settings.
//
// Secrets (API keys, the device secret and S3 credentials) are only read
// from the environment.
type Config struct {
	DataDir  string
	LogLevel string

	GRPCAddr   string
	HTTPAddr   string
	RemoteAddr string

	InterpretBaseURL string
	InterpretModel   string
	InterpretMethod  string

	VideoBaseURL       string
	VideoModel         string
	VideoResolution    string
	VideoDuration      string
	PollInterval       time.Duration
	MaxAttempts        int
	DisableRemoteVideo bool

	DreamLogDSN string

	S3Bucket   string
	S3Region   string
	S3Endpoint string

	ReconcileSchedule string
	BackgroundTimeout time.Duration

	OpenAIKey           string
	LumaKey             string
	SupabaseURL         string
	SupabaseAnonKey     string
	SupabaseAccessToken string
	DeviceSecret        string
	S3AccessKey         string
	S3SecretKey         string
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = defaultDataDir()
	c.LogLevel = "info"
	c.GRPCAddr = "127.0.0.1:50051"
	c.HTTPAddr = "127.0.0.1:9090"
	c.InterpretBaseURL = interpret.DefaultBaseURL
	c.InterpretModel = interpret.DefaultModel
	c.InterpretMethod = string(interpret.Astrological)
	c.VideoBaseURL = videogen.DefaultBaseURL
	c.VideoModel = videogen.DefaultModel
	c.VideoResolution = videogen.DefaultResolution
	c.VideoDuration = videogen.DefaultDuration
	c.PollInterval = videogen.DefaultPollInterval
	c.MaxAttempts = videogen.DefaultMaxAttempts
	c.S3Region = "us-east-1"
	c.ReconcileSchedule = "@every 15m"
	c.BackgroundTimeout = 30 * time.Second
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "ruya")
	}
	return ".ruya"
}

// Load builds a Config from args (without the program name). Later sources
// take precedence: defaults, JSON file, flags, environment.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, flagx.StringFlag(args, "c", "config")); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, flagx.StringFlag(args, "e", "env")); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over os.Args. It panics on malformed input.
func LoadConfig() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		panic(err)
	}
	return cfg
}

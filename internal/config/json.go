package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/ruya/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// accept strings like "3s" or integer nanoseconds.
type JsonConfig struct {
	DataDir            string         `json:"data_dir"`
	LogLevel           string         `json:"log_level"`
	GRPCAddr           string         `json:"grpc_addr"`
	HTTPAddr           string         `json:"http_addr"`
	RemoteAddr         string         `json:"remote_addr"`
	InterpretBaseURL   string         `json:"interpret_base_url"`
	InterpretModel     string         `json:"interpret_model"`
	InterpretMethod    string         `json:"interpret_method"`
	VideoBaseURL       string         `json:"video_base_url"`
	VideoModel         string         `json:"video_model"`
	VideoResolution    string         `json:"video_resolution"`
	VideoDuration      string         `json:"video_duration"`
	PollInterval       timex.Duration `json:"poll_interval"`
	MaxAttempts        int            `json:"max_attempts"`
	DisableRemoteVideo *bool          `json:"disable_remote_video"`
	DreamLogDSN        string         `json:"dream_log_dsn"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3Endpoint         string         `json:"s3_endpoint"`
	ReconcileSchedule  string         `json:"reconcile_schedule"`
	BackgroundTimeout  timex.Duration `json:"background_timeout"`
}

// parseJson overlays cfg with the non-empty values of the file at path.
// An empty path is a no-op.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.GRPCAddr, jc.GRPCAddr)
	setString(&cfg.HTTPAddr, jc.HTTPAddr)
	setString(&cfg.RemoteAddr, jc.RemoteAddr)
	setString(&cfg.InterpretBaseURL, jc.InterpretBaseURL)
	setString(&cfg.InterpretModel, jc.InterpretModel)
	setString(&cfg.InterpretMethod, jc.InterpretMethod)
	setString(&cfg.VideoBaseURL, jc.VideoBaseURL)
	setString(&cfg.VideoModel, jc.VideoModel)
	setString(&cfg.VideoResolution, jc.VideoResolution)
	setString(&cfg.VideoDuration, jc.VideoDuration)
	setString(&cfg.DreamLogDSN, jc.DreamLogDSN)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3Endpoint, jc.S3Endpoint)
	setString(&cfg.ReconcileSchedule, jc.ReconcileSchedule)

	if jc.PollInterval.Duration > 0 {
		cfg.PollInterval = jc.PollInterval.Duration
	}
	if jc.BackgroundTimeout.Duration > 0 {
		cfg.BackgroundTimeout = jc.BackgroundTimeout.Duration
	}
	if jc.MaxAttempts > 0 {
		cfg.MaxAttempts = jc.MaxAttempts
	}
	if jc.DisableRemoteVideo != nil {
		cfg.DisableRemoteVideo = *jc.DisableRemoteVideo
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

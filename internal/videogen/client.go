// Package videogen drives a long-running text-to-video API: it submits a
// job, polls it to a terminal state and downloads the resulting media.
package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/ruya/internal/models"
)

const (
	DefaultBaseURL      = "https://api.lumalabs.ai/dream-machine/v1"
	DefaultModel        = "ray-flash-2"
	DefaultAspectRatio  = "9:16"
	DefaultResolution   = "720p"
	DefaultDuration     = "5s"
	DefaultPollInterval = 3 * time.Second
	DefaultMaxAttempts  = 120

	etaStepSeconds  = 3
	maxMessageBytes = 512
	promptTemplate = "Dreamlike cinematic video: %s. Style: ethereal slow-motion, mystical lighting, fantasy surrealism. Mood: %s"
)

type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	AspectRatio  string
	Resolution   string
	Duration     string
	Loop         bool
	PollInterval time.Duration
	MaxAttempts  int
	HTTPClient   *http.Client
	Clock        Clock
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	clock      Clock
}

// New returns ErrServiceUnavailable when no API key is configured.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrServiceUnavailable
	}

	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = DefaultAspectRatio
	}
	if cfg.Resolution == "" {
		cfg.Resolution = DefaultResolution
	}
	if cfg.Duration == "" {
		cfg.Duration = DefaultDuration
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	c := &Client{cfg: cfg, httpClient: cfg.HTTPClient, clock: cfg.Clock}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if c.clock == nil {
		c.clock = RealClock()
	}
	return c, nil
}

// Resolution and Duration report the values sent with new jobs.
func (c *Client) Resolution() string { return c.cfg.Resolution }
func (c *Client) Duration() string   { return c.cfg.Duration }

type generationRequest struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio"`
	Resolution  string `json:"resolution"`
	Duration    string `json:"duration"`
	Loop        bool   `json:"loop"`
}

type generationResponse struct {
	ID            string  `json:"id"`
	State         string  `json:"state"`
	FailureReason *string `json:"failure_reason"`
	Assets        *struct {
		Video string `json:"video"`
	} `json:"assets"`
}

// CinematicPrompt wraps the user's prompt into the house style.
func CinematicPrompt(prompt, styleHint string) string {
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(prompt), strings.TrimSpace(styleHint))
}

// Submit starts a job and returns its id. Empty resolution or duration use
// the configured defaults.
func (c *Client) Submit(ctx context.Context, prompt, styleHint, resolution, duration string) (string, error) {
	if resolution == "" {
		resolution = c.cfg.Resolution
	}
	if duration == "" {
		duration = c.cfg.Duration
	}

	body, err := json.Marshal(generationRequest{
		Prompt:      CinematicPrompt(prompt, styleHint),
		Model:       c.cfg.Model,
		AspectRatio: c.cfg.AspectRatio,
		Resolution:  resolution,
		Duration:    duration,
		Loop:        c.cfg.Loop,
	})
	if err != nil {
		return "", err
	}

	resp, data, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/generations", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SubmissionRejectedError{StatusCode: resp.StatusCode, Reason: message(data)}
	}

	var gr generationResponse
	if err := json.Unmarshal(data, &gr); err != nil || gr.ID == "" {
		return "", ErrMalformedResponse
	}
	return gr.ID, nil
}

// AwaitCompletion polls jobID until it completes, fails or the attempt
// budget runs out. onProgress, when set, is called synchronously once per
// poll from the calling goroutine.
func (c *Client) AwaitCompletion(ctx context.Context, jobID string, onProgress func(models.GenerationProgress)) (string, error) {
	emit := func(p models.GenerationProgress) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		gr, err := c.poll(ctx, jobID)
		if err != nil {
			return "", err
		}

		state := normalizeState(gr.State)
		missing := state == models.StateCompleted && (gr.Assets == nil || gr.Assets.Video == "")
		if missing {
			state = models.StateFailed
		}
		emit(models.GenerationProgress{
			Attempt:                   attempt,
			MaxAttempts:               c.cfg.MaxAttempts,
			State:                     state,
			EstimatedSecondsRemaining: max(10-attempt, 1) * etaStepSeconds,
		})

		switch {
		case missing:
			return "", ErrMissingAsset
		case state == models.StateCompleted:
			return gr.Assets.Video, nil
		case state == models.StateFailed:
			reason := "unknown reason"
			if gr.FailureReason != nil && *gr.FailureReason != "" {
				reason = *gr.FailureReason
			}
			return "", &GenerationFailedError{JobID: jobID, Reason: reason}
		}

		if attempt < c.cfg.MaxAttempts {
			if err := c.clock.Sleep(ctx, c.cfg.PollInterval); err != nil {
				return "", err
			}
		}
	}

	return "", ErrTimeout
}

// Generate submits a job and waits for it.
func (c *Client) Generate(ctx context.Context, prompt, styleHint string, onProgress func(models.GenerationProgress)) (jobID, mediaURL string, err error) {
	jobID, err = c.Submit(ctx, prompt, styleHint, "", "")
	if err != nil {
		return "", "", err
	}
	mediaURL, err = c.AwaitCompletion(ctx, jobID, onProgress)
	return jobID, mediaURL, err
}

// Download streams mediaURL into a new temp file under dir and returns its path.
func (c *Client) Download(ctx context.Context, mediaURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &RemoteError{StatusCode: resp.StatusCode, Message: message(data)}
	}

	f, err := os.CreateTemp(dir, "remote-*.mp4")
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("download media: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (c *Client) poll(ctx context.Context, jobID string) (generationResponse, error) {
	resp, data, err := c.do(ctx, http.MethodGet, c.cfg.BaseURL+"/generations/"+jobID, nil)
	if err != nil {
		return generationResponse{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return generationResponse{}, &RemoteError{StatusCode: resp.StatusCode, Message: message(data)}
	}

	var gr generationResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return generationResponse{}, ErrMalformedResponse
	}
	return gr, nil
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("video request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read video response: %w", err)
	}
	return resp, data, nil
}

func normalizeState(s string) models.RemoteState {
	switch st := models.RemoteState(strings.ToLower(s)); st {
	case models.StateQueued, models.StateDreaming, models.StateProcessing, models.StateCompleted, models.StateFailed:
		return st
	default:
		return models.StateProcessing
	}
}

func message(data []byte) string {
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Message != "" {
			return body.Message
		}
	}
	s := strings.TrimSpace(string(data))
	if len(s) > maxMessageBytes {
		s = strings.ToValidUTF8(s[:maxMessageBytes], "")
	}
	return s
}

// Package interpret asks a chat-completion API to interpret a dream and
// splits the answer into its sections.
package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	maxMessageBytes = 512
)

var (
	ErrServiceUnavailable = errors.New("interpretation service is not configured")
	ErrMalformedResponse  = errors.New("interpretation response has no content")
)

// RemoteError is returned for non-2xx responses.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("interpretation request failed with status %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxTokens  int
	Method     Method
	Delimiters *Delimiters
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	method     Method
	delimiters Delimiters
	httpClient *http.Client
}

// New returns ErrServiceUnavailable when no API key is configured.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrServiceUnavailable
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		method:     cfg.Method,
		delimiters: DefaultDelimiters,
		httpClient: cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.method == "" {
		c.method = Astrological
	}
	if cfg.Delimiters != nil {
		c.delimiters = *cfg.Delimiters
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// Interpret uses the configured method.
func (c *Client) Interpret(ctx context.Context, prompt string) (models.Interpretation, error) {
	return c.InterpretWith(ctx, prompt, c.method)
}

func (c *Client) InterpretWith(ctx context.Context, prompt string, method Method) (models.Interpretation, error) {
	content, err := c.complete(ctx, method.SystemPrompt(), prompt)
	if err != nil {
		return models.Interpretation{}, err
	}
	return ParseSections(content, c.delimiters), nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("interpretation request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read interpretation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RemoteError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	content := gjson.GetBytes(data, "choices.0.message.content")
	if !content.Exists() || content.Type != gjson.String || strings.TrimSpace(content.String()) == "" {
		return "", ErrMalformedResponse
	}
	return content.String(), nil
}

func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return msg.String()
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxMessageBytes {
		s = strings.ToValidUTF8(s[:maxMessageBytes], "")
	}
	return s
}

package dreamlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/ruya/internal/logging"
	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/tidwall/gjson"
)

const DefaultTable = "dreams"

type Config struct {
	URL        string
	AnonKey    string
	Table      string
	Tokens     TokenSource
	HTTPClient *http.Client
}

// RESTClient talks to a PostgREST endpoint under {URL}/rest/v1.
type RESTClient struct {
	baseURL string
	anonKey string
	table   string
	tokens  TokenSource
	http    *http.Client
	logger  logging.Logger
	now     func() time.Time
}

func NewRESTClient(cfg Config, logger logging.Logger) (*RESTClient, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, ErrNotConfigured
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("dream log url: %w", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}

	return &RESTClient{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		table:   table,
		tokens:  cfg.Tokens,
		http:    hc,
		logger:  logger.With("module", "dreamlog"),
		now:     time.Now,
	}, nil
}

// UserID is the subject of the current session token, or "" without a
// usable session.
func (c *RESTClient) UserID(ctx context.Context) string {
	token := c.session(ctx)
	if token == "" {
		return ""
	}
	claims, _ := sessionClaims(token)
	return claims.Subject
}

func (c *RESTClient) Create(ctx context.Context, d models.RemoteDream) (models.RemoteDream, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return models.RemoteDream{}, fmt.Errorf("marshal dream: %w", err)
	}

	req, err := c.request(ctx, http.MethodPost, nil, bytes.NewReader(body))
	if err != nil {
		return models.RemoteDream{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	data, err := c.do(req)
	if err != nil {
		return models.RemoteDream{}, err
	}

	var saved []models.RemoteDream
	if err := json.Unmarshal(data, &saved); err != nil {
		return models.RemoteDream{}, fmt.Errorf("decode dream: %w", err)
	}
	if len(saved) == 0 {
		return models.RemoteDream{}, ErrEmptyResponse
	}
	return saved[0], nil
}

func (c *RESTClient) List(ctx context.Context, userID string, limit int) ([]models.RemoteDream, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(limit))

	req, err := c.request(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}

	data, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var out []models.RemoteDream
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode dreams: %w", err)
	}
	return out, nil
}

func (c *RESTClient) Delete(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)

	req, err := c.request(ctx, http.MethodDelete, q, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=representation")

	data, err := c.do(req)
	if err != nil {
		return err
	}
	if r := gjson.ParseBytes(data); r.IsArray() && len(r.Array()) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (c *RESTClient) request(ctx context.Context, method string, q url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + "/rest/v1/" + c.table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	bearer := c.session(ctx)
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// session returns the session token if it parses and has not expired.
func (c *RESTClient) session(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Warn(ctx, "session token unavailable", "error", err)
		return ""
	}
	if token == "" {
		return ""
	}
	claims, ok := sessionClaims(token)
	if !ok || !usable(claims, c.now()) {
		return ""
	}
	return token
}

func (c *RESTClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(data, "message").String()
		if msg == "" {
			msg = gjson.GetBytes(data, "error").String()
		}
		return nil, &RemoteError{StatusCode: resp.StatusCode, Message: msg}
	}
	return data, nil
}

var _ Sink = (*RESTClient)(nil)

// IsNotFound reports whether err means the dream does not exist.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.Is(err, ErrNotFound) || (errors.As(err, &re) && re.StatusCode == http.StatusNotFound)
}

// Package gemini talks to the Gemini generateContent API, either directly or
// through a deployment of the chat proxy route.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-pro"
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps how much of an upstream body is read.
	MaxResponseSize = 10 * 1024 * 1024
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

var (
	ErrNotConfigured = errors.New("gemini API key not configured")
	ErrNoText        = errors.New("no text in gemini response")
)

// APIError is a non-2xx answer from the upstream. Details holds the upstream
// body when it was JSON, or the raw body as a JSON string otherwise.
type APIError struct {
	Status  int
	Details json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini error (HTTP %d): %s", e.Status, string(e.Details))
}

type Part struct {
	Text string `json:"text"`
}

// Content is one conversation turn in the upstream vocabulary.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

func NewContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

// ValidRole reports whether role is part of the upstream vocabulary.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleModel
}

type generateRequest struct {
	Contents []Content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content Content `json:"content"`
	} `json:"candidates"`
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateContent sends contents upstream and returns the text of the first
// candidate. No retries are attempted.
func (c *Client) GenerateContent(ctx context.Context, contents []Content) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{Contents: contents})
	if err != nil {
		return "", errors.Wrap(err, "marshal request")
	}

	url := fmt.Sprintf("%s/v1/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	raw, err := do(c.httpClient, req)
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", errors.Wrap(err, "decode gemini response")
	}
	if len(resp.Candidates) == 0 {
		return "", ErrNoText
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			return p.Text, nil
		}
	}
	return "", ErrNoText
}

func do(hc *http.Client, req *http.Request) ([]byte, error) {
	res, err := hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "upstream request")
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, MaxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "read upstream body")
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &APIError{Status: res.StatusCode, Details: details(raw)}
	}
	return raw, nil
}

func details(raw []byte) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && json.Valid(raw) {
		return json.RawMessage(raw)
	}
	s, _ := json.Marshal(string(raw))
	return s
}

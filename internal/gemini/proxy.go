package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// ProxyRequest is the body accepted by the proxy route.
type ProxyRequest struct {
	PromptMessages []Content `json:"promptMessages"`
}

type ProxyResponse struct {
	Text string `json:"text"`
}

// ProxyClient calls a deployed proxy route (POST /gemini or /api/gemini)
// instead of the upstream API. The proxy holds the credential.
type ProxyClient struct {
	url        string
	httpClient *http.Client
}

func NewProxyClient(url string, hc *http.Client) *ProxyClient {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &ProxyClient{url: url, httpClient: hc}
}

func (p *ProxyClient) GenerateContent(ctx context.Context, contents []Content) (string, error) {
	body, err := json.Marshal(ProxyRequest{PromptMessages: contents})
	if err != nil {
		return "", errors.Wrap(err, "marshal proxy request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build proxy request")
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := do(p.httpClient, req)
	if err != nil {
		return "", err
	}

	var resp ProxyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", errors.Wrap(err, "decode proxy response")
	}
	if resp.Text == "" {
		return "", ErrNoText
	}
	return resp.Text, nil
}

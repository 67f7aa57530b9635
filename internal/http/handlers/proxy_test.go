package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/YikKhai0303/ChatApp/internal/gemini"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type proxyError struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

func TestProxy_Health(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "API is running!", rec.Body.String())
}

func TestProxy_Generate(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/gemini", "/api/gemini"} {
		rec := e.do(t, http.MethodPost, path, "", gemini.ProxyRequest{PromptMessages: []gemini.Content{
			gemini.NewContent(gemini.RoleUser, "Plan a day in Paris"),
			gemini.NewContent(gemini.RoleModel, "Sure."),
			gemini.NewContent(gemini.RoleUser, "Make it cheaper"),
		}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp gemini.ProxyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Here is a plan.", resp.Text)
		assert.Len(t, e.upstream.last, 3)
	}
	assert.Equal(t, 2, e.upstream.Calls())
}

func TestProxy_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"no field", gin.H{}, "Missing promptMessages"},
		{"empty list", gin.H{"promptMessages": []gemini.Content{}}, "Missing promptMessages"},
		{"not json", "plain text", "Missing promptMessages"},
		{"unknown role", gin.H{"promptMessages": []gemini.Content{gemini.NewContent("system", "hi")}}, `invalid role "system" at index 0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)

			rec := e.do(t, http.MethodPost, "/gemini", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp proxyError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Error)
			assert.Zero(t, e.upstream.Calls())
		})
	}
}

func TestProxy_BodyTooLarge(t *testing.T) {
	e := newTestEnv(t)

	big := strings.Repeat("a", MaxProxyBody)
	rec := e.do(t, http.MethodPost, "/gemini", "", gin.H{"promptMessages": []gemini.Content{
		gemini.NewContent(gemini.RoleUser, big),
	}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, e.upstream.Calls())
}

func TestProxy_UpstreamFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		details string
	}{
		{
			name:    "upstream payload",
			err:     &gemini.APIError{Status: 429, Details: json.RawMessage(`{"error":{"code":429}}`)},
			details: `{"error":{"code":429}}`,
		},
		{
			name:    "no text",
			err:     gemini.ErrNoText,
			details: `"no text in gemini response"`,
		},
		{
			name:    "transport",
			err:     errors.Wrap(errors.New("connection refused"), "gemini request"),
			details: `"gemini request: connection refused"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.upstream.err = tt.err

			rec := e.do(t, http.MethodPost, "/api/gemini", "", gemini.ProxyRequest{PromptMessages: []gemini.Content{
				gemini.NewContent(gemini.RoleUser, "hello"),
			}})
			assert.Equal(t, http.StatusInternalServerError, rec.Code)

			var resp proxyError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Failed to get Gemini response", resp.Error)
			assert.JSONEq(t, tt.details, string(resp.Details))
		})
	}
}

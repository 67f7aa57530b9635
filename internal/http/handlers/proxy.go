package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/YikKhai0303/ChatApp/internal/gemini"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// MaxProxyBody caps the size of a proxy request body.
const MaxProxyBody = 1 << 20

type Generator interface {
	GenerateContent(ctx context.Context, contents []gemini.Content) (string, error)
}

// ProxyHandler forwards a conversation window to the upstream model. It keeps
// no state and never retries.
type ProxyHandler struct {
	Upstream Generator
}

func (h *ProxyHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "API is running!")
}

func (h *ProxyHandler) Generate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxProxyBody)

	var req gemini.ProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing promptMessages"})
		return
	}
	if len(req.PromptMessages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing promptMessages"})
		return
	}
	for i, m := range req.PromptMessages {
		if !gemini.ValidRole(m.Role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid role %q at index %d", m.Role, i)})
			return
		}
	}

	text, err := h.Upstream.GenerateContent(c.Request.Context(), req.PromptMessages)
	if err != nil {
		log.Printf("proxy: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get Gemini response",
			"details": failureDetails(err),
		})
		return
	}

	c.JSON(http.StatusOK, gemini.ProxyResponse{Text: text})
}

// failureDetails is the upstream payload when there was one, otherwise the
// error message.
func failureDetails(err error) json.RawMessage {
	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) && len(apiErr.Details) > 0 {
		return apiErr.Details
	}
	raw, _ := json.Marshal(err.Error())
	return raw
}

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hookflow-go/internal/services/webhook/service"
	"github.com/hookflow-go/pkg/contracts/webhook"
	"github.com/hookflow-go/pkg/logger"
)

// maxBodySize bounds inbound webhook bodies. Providers in scope all stay
// well under this.
const maxBodySize = 4 << 20

type WebhookHandlers struct {
	service *service.WebhookService
	logger  logger.Logger
}

func NewWebhookHandlers(svc *service.WebhookService, log logger.Logger) *WebhookHandlers {
	return &WebhookHandlers{
		service: svc,
		logger:  log,
	}
}

func (h *WebhookHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *WebhookHandlers) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// VerifyTrigger handles GET /webhooks/trigger/:path, the provider
// verification handshake.
func (h *WebhookHandlers) VerifyTrigger(c *gin.Context) {
	path := c.Param("path")

	resp, err := h.service.HandleVerification(c.Request.Context(), path, c.Request.URL.Query())
	if err != nil {
		h.respondError(c, path, err)
		return
	}
	c.Data(resp.Status, resp.ContentType, []byte(resp.Body))
}

// Trigger handles POST /webhooks/trigger/:path, the delivery path.
func (h *WebhookHandlers) Trigger(c *gin.Context) {
	path := c.Param("path")

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		c.String(http.StatusBadRequest, "failed to read request body")
		return
	}

	// The full header goes through untouched: multipart decoding needs the
	// boundary parameter, which gin's ContentType() strips.
	resp, err := h.service.HandleDelivery(c.Request.Context(), path, body, c.GetHeader("Content-Type"), c.Request.Header)
	if err != nil {
		h.respondError(c, path, err)
		return
	}
	c.Data(resp.Status, resp.ContentType, []byte(resp.Body))
}

// Test handles POST /webhooks/test/:id. Authenticated and ownership checked;
// not part of the delivery path.
func (h *WebhookHandlers) Test(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user ID required"})
		return
	}

	baseURL := baseURLFromRequest(c)
	instructions, err := h.service.TestInstructions(c.Request.Context(), c.Param("id"), userID, baseURL)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotAuthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "caller does not own the parent workflow"})
		case errors.Is(err, webhook.ErrWebhookNotFound), errors.Is(err, webhook.ErrWorkflowNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "webhook not found"})
		default:
			h.logger.Error("Failed to build test instructions", "webhookId", c.Param("id"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.String(http.StatusOK, instructions)
}

// respondError maps pipeline errors onto the small set of outcomes a provider
// may see: 400, 404 or a JSON 500. Never a stack trace.
func (h *WebhookHandlers) respondError(c *gin.Context, path string, err error) {
	switch {
	case errors.Is(err, webhook.ErrWebhookNotFound), errors.Is(err, webhook.ErrWorkflowNotFound):
		c.String(http.StatusNotFound, "webhook not found")
	case errors.Is(err, webhook.ErrEmptyBody):
		c.String(http.StatusBadRequest, "empty request body")
	default:
		h.logger.Error("Webhook delivery failed", "path", path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "workflow execution failed"})
	}
}

func baseURLFromRequest(c *gin.Context) string {
	scheme := "https"
	if c.Request.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + c.Request.Host
}

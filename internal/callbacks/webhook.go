package callbacks

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RohitLad/resume-markup/internal/queue"
	"github.com/RohitLad/resume-markup/internal/shared/server/respond"
	"github.com/RohitLad/resume-markup/internal/shared/telemetry"
)

// DefaultMaxCallbackBytes caps a callback body when MaxBytes is unset.
const DefaultMaxCallbackBytes = 5 << 20 // 5MB

// WebhookHandler receives workflow callbacks and queues them for workers.
type WebhookHandler struct {
	APIKey string
	Queue  queue.Client
	// MaxBytes caps the accepted body. It must fit the queue backend's limit.
	MaxBytes int
	Now      func() time.Time
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(apiKey string, q queue.Client) *WebhookHandler {
	return &WebhookHandler{APIKey: apiKey, Queue: q}
}

// RegisterRoutes attaches the webhook route to the router group.
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/workflow", h.receive)
}

func (h *WebhookHandler) receive(c *gin.Context) {
	if !h.authorized(c) {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid api key", nil)
		return
	}

	limit := h.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxCallbackBytes
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(limit)+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unreadable body", nil)
		return
	}
	if len(body) > limit {
		respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "callback body too large", gin.H{"maxBytes": limit})
		return
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "body must be a JSON object", nil)
		return
	}
	p, err := ParsePayload(body)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid callback payload", gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now()
	}
	msg := queue.NewMessage(p.RequestID, p.Type, body, now)
	if err := h.Queue.Send(c.Request.Context(), msg); err != nil {
		if errors.Is(err, queue.ErrTooLarge) {
			telemetry.Warn("webhook.too_large", map[string]any{
				"type":       p.Type,
				"request_id": p.RequestID,
				"body_len":   len(body),
			})
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "callback body too large", nil)
			return
		}
		telemetry.Error("webhook.enqueue_failed", map[string]any{
			"type":       p.Type,
			"request_id": p.RequestID,
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "callback could not be queued", nil)
		return
	}

	telemetry.Info("webhook.accepted", map[string]any{
		"type":       p.Type,
		"request_id": p.RequestID,
		"body_len":   len(body),
	})
	respond.OK(c, gin.H{"status": "accepted"})
}

// authorized accepts the shared secret from the API_KEY header or api_key query.
// An empty configured key accepts every caller.
func (h *WebhookHandler) authorized(c *gin.Context) bool {
	if h.APIKey == "" {
		return true
	}
	got := strings.TrimSpace(c.GetHeader("API_KEY"))
	if got == "" {
		got = strings.TrimSpace(c.Query("api_key"))
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.APIKey)) == 1
}

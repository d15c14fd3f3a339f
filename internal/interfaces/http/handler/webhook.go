package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appcommerce "github.com/storesync/backend/internal/application/commerce"
	"github.com/storesync/backend/internal/domain/commerce"
	"github.com/storesync/backend/internal/interfaces/http/dto"
)

// Upstream webhook headers
const (
	HeaderWebhookTopic     = "X-Shopify-Topic"
	HeaderWebhookSignature = "X-Shopify-Hmac-Sha256"
	HeaderWebhookID        = "X-Shopify-Webhook-Id"
)

// DefaultWebhookBodyLimit bounds a webhook body when none is configured
const DefaultWebhookBodyLimit int64 = 1 << 20

// WebhookIngester applies authenticated webhook deliveries
type WebhookIngester interface {
	Ingest(ctx context.Context, d appcommerce.WebhookDelivery) (appcommerce.IngestResult, error)
}

// WebhookRegisterer registers a tenant's webhook topics upstream
type WebhookRegisterer interface {
	RegisterWebhooks(ctx context.Context, tenantID uuid.UUID) ([]commerce.WebhookRegistration, error)
}

// WebhookHandler handles inbound store webhooks and webhook registration
type WebhookHandler struct {
	BaseHandler
	ingester   WebhookIngester
	registerer WebhookRegisterer
	maxBody    int64
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ingester WebhookIngester, registerer WebhookRegisterer, maxBody int64) *WebhookHandler {
	if maxBody <= 0 {
		maxBody = DefaultWebhookBodyLimit
	}
	return &WebhookHandler{
		ingester:   ingester,
		registerer: registerer,
		maxBody:    maxBody,
	}
}

// Receive handles POST /webhook/:tenantId
// The raw body is read unparsed because the signature covers its exact bytes.
func (h *WebhookHandler) Receive(c *gin.Context) {
	topic := c.GetHeader(HeaderWebhookTopic)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.ErrorWithCode(c, dto.ErrCodePayloadTooLarge, "Webhook body too large")
			return
		}
		h.BadRequest(c, "Failed to read webhook body")
		return
	}

	result, err := h.ingester.Ingest(c.Request.Context(), appcommerce.WebhookDelivery{
		TenantID:   c.Param("tenantId"),
		Topic:      topic,
		Body:       body,
		Signature:  c.GetHeader(HeaderWebhookSignature),
		DeliveryID: c.GetHeader(HeaderWebhookID),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, WebhookAck{
		Received: true,
		Topic:    topic,
		Outcome:  string(result),
	})
}

// Register godoc
// @ID           registerTenantWebhooks
// @Summary      Register webhook topics upstream
// @Description  Registers every webhook topic for the tenant. A partial failure answers 502 and still lists the topics that succeeded.
// @Tags         webhooks
// @Produce      json
// @Param        tenantId path string true "Tenant ID" format(uuid)
// @Success      200 {object} APIResponse[RegisterWebhooksResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      502 {object} APIResponse[RegisterWebhooksResponse]
// @Router       /tenants/{tenantId}/webhooks/register [post]
func (h *WebhookHandler) Register(c *gin.Context) {
	tenantID, ok := parseUUIDParam(c, "tenantId")
	if !ok {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}

	regs, err := h.registerer.RegisterWebhooks(c.Request.Context(), tenantID)
	resp := RegisterWebhooksResponse{
		TenantID:      tenantID,
		Registrations: toWebhookRegistrationResponses(regs),
	}
	if err == nil {
		h.Success(c, resp)
		return
	}
	if len(regs) == 0 {
		h.HandleError(c, err)
		return
	}

	resp.Failed = splitJoined(err)
	c.JSON(http.StatusBadGateway, APIResponse[RegisterWebhooksResponse]{
		Success: false,
		Data:    resp,
		Error: dto.NewErrorResponseWithRequestID(
			dto.ErrCodeUpstream,
			"Some webhook topics could not be registered",
			getRequestID(c),
		).Error,
	})
}

// splitJoined lists the messages of an errors.Join result
func splitJoined(err error) []string {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []string{err.Error()}
	}
	errs := joined.Unwrap()
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return msgs
}

package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/youth-governance-backend/internal/http/handlers/common"
	"github.com/ignatzorin/youth-governance-backend/internal/http/middleware"
	"github.com/ignatzorin/youth-governance-backend/internal/models"
	"github.com/ignatzorin/youth-governance-backend/internal/service"
)

// WebhookHandler receives rows pushed by Zapier.
type WebhookHandler struct {
	imports *service.ImportService
}

func NewWebhookHandler(imports *service.ImportService) *WebhookHandler {
	return &WebhookHandler{imports: imports}
}

// ImportYouthProfiles handles POST /webhooks/zapier/youth-profiles. The body
// has already been verified by middleware.ZapierSignature.
func (h *WebhookHandler) ImportYouthProfiles(c *gin.Context) {
	body, ok := c.Get(middleware.ContextRawBodyKey)
	raw, isBytes := body.([]byte)
	if !ok || !isBytes {
		var err error
		if raw, err = io.ReadAll(c.Request.Body); err != nil {
			common.RespondBadRequest(c, "cannot read request body")
			return
		}
	}

	rows, err := service.DecodeRows(raw)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	result, err := h.imports.Import(c.Request.Context(), service.Actor{IP: c.ClientIP()}, models.SourceZapier, rows)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

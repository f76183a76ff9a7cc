package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	webhookdomain "github.com/smallbiznis/paysync/internal/webhook/domain"
	"go.uber.org/zap"
)

// HandleWebhookCallback receives gateway webhook deliveries. The response
// echoes the delivery back so the gateway's retry log shows what was seen.
// Failures return 500 so the gateway redelivers; the body never carries
// internal error detail.
func (s *Server) HandleWebhookCallback(c *gin.Context) {
	channelID := strings.TrimSpace(c.Param("channelId"))

	cfg := s.holder.Get()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(cfg.MaxRequestBodyBytes))

	var event webhookdomain.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		s.log.Error("malformed webhook payload",
			zap.String("channel_id", channelID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"data": event})
		return
	}

	if err := s.webhookSvc.HandleCallback(c.Request.Context(), channelID, &event); err != nil {
		s.log.Error("webhook reconciliation failed",
			zap.String("channel_id", channelID),
			zap.String("entity", event.ListenerEntityTechnicalName),
			zap.Int64("space_id", event.SpaceID),
			zap.Int64("entity_id", event.EntityID),
			zap.Int64("event_id", event.EventID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"data": event})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}

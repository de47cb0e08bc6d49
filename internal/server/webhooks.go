package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandlePaymentWebhook accepts processor callbacks. A duplicate delivery is a
// 200 like a first delivery; only signature or payload failures get a 4xx so
// the processor stops retrying garbage.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "invalid_request",
			Message: "unreadable body",
		}})
		return
	}

	result, err := s.ingestor.Ingest(c.Request.Context(), payload, c.GetHeader("Lexora-Signature"))
	if err != nil {
		s.log.Warn("webhook rejected", zap.Error(err))
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/lexora/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/lexora/internal/usage/domain"
)

func (s *Server) HandleRecordUsage(c *gin.Context) {
	var req usagedomain.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}})
		return
	}

	avail, err := s.usageSvc.RecordUsage(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, avail)
}

func (s *Server) HandleGetAvailability(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		abortWithError(c, subscriptiondomain.ErrSubscriptionNotFound)
		return
	}

	avail, err := s.usageSvc.GetAvailability(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, avail)
}

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
	"github.com/sraza-onshape/OnshapeExperiments/internal/relay"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

const sessionInfoPath = "users/sessioninfo"

func (s *Server) handleEvent(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("Failed to read body: %v", err),
			Status: http.StatusBadRequest,
		})
		return
	}

	ev, err := relay.DecodeEvent(raw)
	if err != nil {
		slog.Warn("Rejected webhook payload",
			log.Error(err))
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	writeOutcome(c, s.relay.Handle(c.Request.Context(), ev))
}

func (s *Server) handleNotifications(c *gin.Context) {
	var req api.NotificationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("Invalid query: %v", err),
			Status: http.StatusBadRequest,
		})
		return
	}
	writeOutcome(c, s.relay.Subscribe(c.Request.Context(), &req))
}

func (s *Server) handleTranslation(c *gin.Context) {
	id := api.TranslationID(c.Param("translationID"))
	writeOutcome(c, s.relay.Status(c.Request.Context(), id))
}

// handleEmail forwards the session info of the account the relay acts as.
// Platform error statuses are passed through unchanged
func (s *Server) handleEmail(c *gin.Context) {
	resp, err := s.platform.Do(c.Request.Context(), &platform.Request{
		Verb: http.MethodGet,
		Path: sessionInfoPath,
	})
	if resp == nil {
		status := http.StatusBadGateway
		if errors.Is(err, platform.ErrRequestTimedOut) {
			status = http.StatusGatewayTimeout
		}
		slog.Error("Session info request failed",
			log.Error(err))
		c.JSON(status, api.ErrorResponse{
			Error:  err.Error(),
			Status: status,
		})
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.Status, contentType, resp.Body)
}

package server

import (
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	app "github.com/sraza-onshape/OnshapeExperiments"
	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
	"github.com/sraza-onshape/OnshapeExperiments/internal/relay"
	"github.com/sraza-onshape/OnshapeExperiments/internal/util"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/api"
	"github.com/sraza-onshape/OnshapeExperiments/pkg/log"
)

// Server implements the HTTP API server for the relay
type Server struct {
	relay    *relay.Correlator
	platform platform.Client
	sockets  util.Set[*Client]
	mu       sync.Mutex
}

const healthStatusOK = "healthy"

// NewServer creates a new HTTP API server
func NewServer(r *relay.Correlator, p platform.Client) *Server {
	return &Server{
		relay:    r,
		platform: p,
		sockets:  util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods", "GET, POST, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)

	rest := router.Group("/api")
	{
		// Platform webhook callback
		rest.POST("/event", s.handleEvent)

		rest.GET("/notifications", s.handleNotifications)
		rest.GET("/email", s.handleEmail)

		// Diagnostics
		rest.GET("/translations/:translationID", s.handleTranslation)
		rest.GET("/ledger", s.handleLedger)

		rest.GET("/ws", s.handleWebSocket)
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service: app.Name,
		Version: app.Version,
		Status:  healthStatusOK,
	})
}

func (s *Server) handleLedger(c *gin.Context) {
	snap, err := s.relay.Snapshot(c.Request.Context())
	if err != nil {
		slog.Error("Failed to read ledger",
			log.Error(err))
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections.
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func writeOutcome(c *gin.Context, out relay.Outcome) {
	if out.Body == nil {
		c.Status(out.Status)
		return
	}
	c.JSON(out.Status, out.Body)
}

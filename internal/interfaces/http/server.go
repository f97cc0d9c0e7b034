// Package http provides the HTTP adapter over the application services.
// It is a thin layer: requests are translated into service calls and domain
// errors into status codes, nothing more.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tejasbhor/civiclens-core/internal/application/port"
	"github.com/tejasbhor/civiclens-core/internal/application/service"
	"github.com/tejasbhor/civiclens-core/internal/infrastructure/worker"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     *zap.Logger
}

// NewServer creates a new HTTP server wired to the application services
func NewServer(
	config ServerConfig,
	reportService *service.ReportService,
	lifecycleService *service.LifecycleService,
	appealService *service.AppealService,
	feedbackService *service.FeedbackService,
	reportQueue port.ReportQueue,
	reportWorker *worker.ReportWorker,
	slaWorker *worker.SLAWorker,
	workerManager *worker.Manager,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	server := &Server{
		config: config,
		router: router,
		logger: logger,
	}

	server.setupMiddleware()

	handlers := NewHandlers(reportService, lifecycleService, appealService, feedbackService,
		reportQueue, reportWorker, slaWorker, workerManager, logger)
	server.setupRoutes(handlers)

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *Server) setupRoutes(h *Handlers) {
	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api/v1")
	{
		// Report intake and reads
		api.POST("/reports", h.CreateReport)
		api.GET("/reports/:id", h.GetReport)
		api.POST("/reports/:id/reprocess", h.ReprocessReport)
		api.PUT("/reports/:id/classification", h.SetManualClassification)

		// Lifecycle actions
		api.POST("/reports/:id/acknowledge", h.Acknowledge)
		api.POST("/reports/:id/start", h.StartWork)
		api.POST("/reports/:id/submit-verification", h.SubmitForVerification)
		api.POST("/reports/:id/approve", h.ApproveResolution)
		api.POST("/reports/:id/reject-verification", h.RejectVerification)
		api.POST("/reports/:id/reject", h.RejectReport)
		api.POST("/reports/:id/hold", h.Hold)
		api.POST("/reports/:id/resume", h.Resume)
		api.POST("/reports/:id/reject-assignment", h.RejectAssignment)
		api.POST("/reports/:id/assign", h.AssignOfficer)
		api.POST("/reports/:id/escalate", h.Escalate)

		// Appeals
		api.POST("/reports/:id/appeals", h.SubmitAppeal)
		api.POST("/appeals/:id/review", h.StartAppealReview)
		api.POST("/appeals/:id/resolve", h.ResolveAppeal)
		api.POST("/appeals/:id/withdraw", h.WithdrawAppeal)
		api.POST("/appeals/:id/complete-rework", h.CompleteRework)

		// Feedback
		api.POST("/reports/:id/feedback", h.SubmitFeedback)
		api.GET("/reports/:id/feedback", h.GetFeedback)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Package api exposes the brief pipeline over a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// MessageDetail is a stored message with its category and feedback history
type MessageDetail struct {
	core.Message
	Category string          `json:"category"`
	Feedback []core.Feedback `json:"feedback"`
}

// Server serves the JSON API and the Prometheus endpoint
type Server struct {
	addr     string
	engine   *gin.Engine
	srv      *http.Server
	briefs   *core.BriefService
	feedback *core.FeedbackService
	logger   *zap.Logger
}

// NewServer creates a new API server listening on addr
func NewServer(
	addr string,
	briefs *core.BriefService,
	feedback *core.FeedbackService,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware(logger))

	s := &Server{
		addr:     addr,
		engine:   engine,
		briefs:   briefs,
		feedback: feedback,
		logger:   logger,
	}
	s.routes(gatherer)
	return s
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	api.GET("/messages", s.listMessages)
	api.GET("/messages/:id", s.getMessage)
	api.POST("/messages/:id/feedback", s.submitFeedback)
	api.POST("/messages/:id/score", s.scoreMessage)
	api.POST("/fetch", s.fetch)
	api.POST("/score", s.scoreRecent)
	api.GET("/threshold", s.threshold)
	api.GET("/brief", s.brief)
	api.GET("/categorize", s.categorize)
}

// Start starts serving in the background
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("API server starting", zap.String("address", s.addr))

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) listMessages(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "48"))
	if err != nil || hours <= 0 {
		s.fail(c, http.StatusBadRequest, "validation_error", "hours must be a positive integer")
		return
	}

	msgs, err := s.briefs.Recent(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "count": len(msgs)})
}

func (s *Server) getMessage(c *gin.Context) {
	id := c.Param("id")
	msg, err := s.briefs.Message(c.Request.Context(), id)
	if err != nil {
		s.failErr(c, err)
		return
	}

	history, err := s.feedback.History(c.Request.Context(), id)
	if err != nil {
		s.failErr(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageDetail{
		Message:  *msg,
		Category: core.Categorize(msg.Sender, msg.Subject),
		Feedback: history,
	})
}

func (s *Server) submitFeedback(c *gin.Context) {
	var in core.FeedbackInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.fail(c, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	in.MessageID = c.Param("id")

	res, err := s.feedback.Submit(c.Request.Context(), in)
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) scoreMessage(c *gin.Context) {
	b, err := s.briefs.ScoreMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) fetch(c *gin.Context) {
	stored, err := s.briefs.Fetch(c.Request.Context())
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": stored})
}

func (s *Server) scoreRecent(c *gin.Context) {
	report, err := s.briefs.ScoreRecent(c.Request.Context())
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) threshold(c *gin.Context) {
	threshold, err := s.briefs.Threshold(c.Request.Context())
	if err != nil {
		s.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threshold": threshold})
}

func (s *Server) brief(c *gin.Context) {
	ctx := c.Request.Context()
	brief, err := s.briefs.Generate(ctx)
	if err != nil {
		s.failErr(c, err)
		return
	}

	if deliver, _ := strconv.ParseBool(c.Query("deliver")); deliver {
		if err := s.briefs.Deliver(ctx, brief); err != nil {
			s.logger.Warn("Brief delivery failed", zap.String("brief_id", brief.ID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, brief)
}

func (s *Server) categorize(c *gin.Context) {
	sender := c.Query("sender")
	subject := c.Query("subject")
	c.JSON(http.StatusOK, gin.H{
		"sender":   sender,
		"subject":  subject,
		"category": core.Categorize(sender, subject),
	})
}

func (s *Server) fail(c *gin.Context, code int, kind, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Error: kind, Message: message, Code: code})
}

// failErr maps core sentinel errors onto HTTP status codes
func (s *Server) failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		s.fail(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, core.ErrInvalidFeedback), errors.Is(err, core.ErrInvalidMessage):
		s.fail(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, core.ErrNotConfigured):
		s.fail(c, http.StatusServiceUnavailable, "not_configured", err.Error())
	case errors.Is(err, core.ErrEmbeddingFailed):
		s.fail(c, http.StatusBadGateway, "upstream_error", err.Error())
	default:
		s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		s.fail(c, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

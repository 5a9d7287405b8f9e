// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jeranaias/campusgpt-tui/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultAddr matches the client's default base URL.
	DefaultAddr = "127.0.0.1:8000"

	// DefaultChunkDelay paces streamed words so the client visibly streams.
	DefaultChunkDelay = 40 * time.Millisecond

	// historyCap is how many entries GET history returns.
	historyCap = 50

	// timestampLayout is the backend's naive ISO-8601 format.
	timestampLayout = "2006-01-02T15:04:05.000000"

	backendFailure = "The knowledge base is temporarily unavailable. Please try again later."
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config configures a Server.
type Config struct {
	Addr string
	// Token is the bearer token clients must present. Empty disables auth.
	Token string
	// ChunkDelay is the pause between streamed words. Negative means none.
	ChunkDelay time.Duration
	Topics     []Topic
	Logger     *slog.Logger
}

// =============================================================================
// STATS
// =============================================================================

// Stats counts requests served.
type Stats struct {
	Queries      int64
	Streamed     int64
	Failed       int64
	Unauthorized int64
	StartTime    time.Time
}

// =============================================================================
// SERVER
// =============================================================================

// Server is the development backend.
type Server struct {
	cfg    Config
	engine *gin.Engine
	kb     *KnowledgeBase
	logger *slog.Logger

	mu       sync.Mutex
	http     *http.Server
	history  []historyRecord
	sessions map[string]time.Time
	stats    Stats
}

// historyRecord is the wire shape of a history entry.
type historyRecord struct {
	ID        string           `json:"_id"`
	Question  string           `json:"question"`
	Answer    string           `json:"answer"`
	Sources   []model.Citation `json:"sources"`
	SessionID string           `json:"session_id,omitempty"`
	Timestamp string           `json:"timestamp"`
}

// New builds a Server. It does not listen until Start.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ChunkDelay == 0 {
		cfg.ChunkDelay = DefaultChunkDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:      cfg,
		engine:   gin.New(),
		kb:       NewKnowledgeBase(cfg.Topics),
		logger:   cfg.Logger.With("component", "dev-server"),
		sessions: make(map[string]time.Time),
		stats:    Stats{StartTime: time.Now()},
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Stats returns a copy of the request counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// =============================================================================
// ROUTES
// =============================================================================

func (s *Server) setupRoutes() {
	s.engine.Use(RecoveryMiddleware(s.logger), LoggingMiddleware(s.logger))

	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api", AuthMiddleware(s.cfg.Token, s.countUnauthorized))
	{
		api.POST("/query", s.handleQuery)
		api.GET("/student/history", s.handleHistory)
		api.POST("/student/chat/session", s.handleCreateSession)
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

type queryRequest struct {
	Question  string `json:"question"`
	Stream    bool   `json:"stream"`
	SessionID string `json:"session_id"`
}

// frame is one streamed line.
type frame struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid request body"})
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "question is required"})
		return
	}

	fail := strings.Contains(strings.ToLower(req.Question), FailMarker)
	answer, sources := s.kb.Answer(req.Question)

	s.mu.Lock()
	s.stats.Queries++
	if req.Stream {
		s.stats.Streamed++
	}
	if fail {
		s.stats.Failed++
	}
	s.mu.Unlock()

	if !req.Stream {
		if fail {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": backendFailure})
			return
		}
		s.record(req, answer, sources)
		c.JSON(http.StatusOK, gin.H{"answer": answer, "sources": sources})
		return
	}

	s.streamAnswer(c, req, answer, sources, fail)
}

// streamAnswer writes the frame sequence for one answer. It stops quietly
// when the client goes away.
func (s *Server) streamAnswer(c *gin.Context, req queryRequest, answer string, sources []model.Citation, fail bool) {
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	write := func(f frame) bool {
		data, err := json.Marshal(f)
		if err != nil {
			s.logger.Error("frame encode failed", "error", err)
			return false
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return false
		}
		c.Writer.Flush()
		return ctx.Err() == nil
	}

	if _, err := c.Writer.WriteString(": keep-alive\n\n"); err != nil {
		return
	}
	c.Writer.Flush()

	if !write(frame{Type: "sources", Data: sources}) {
		return
	}

	words := splitWords(answer)
	if fail {
		// Enough of the answer to show that partial text gets replaced.
		words = words[:min(len(words), 3)]
	}
	for _, w := range words {
		if !s.pause(ctx) || !write(frame{Type: "chunk", Data: w}) {
			s.logger.Debug("client went away mid-stream", "question", req.Question)
			return
		}
	}

	if fail {
		write(frame{Type: "error", Message: backendFailure})
		return
	}
	s.record(req, answer, sources)
	write(frame{Type: "done"})
}

func (s *Server) pause(ctx context.Context) bool {
	if s.cfg.ChunkDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.cfg.ChunkDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Server) handleHistory(c *gin.Context) {
	s.mu.Lock()
	n := min(len(s.history), historyCap)
	out := make([]historyRecord, 0, n)
	// Stored oldest first; served newest first.
	for i := len(s.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.history[i])
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"queries": out})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = time.Now()
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"session_id": id})
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := s.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(stats.StartTime).Round(time.Second).String(),
		"queries": stats.Queries,
	})
}

func (s *Server) record(req queryRequest, answer string, sources []model.Citation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, historyRecord{
		ID:        uuid.NewString(),
		Question:  req.Question,
		Answer:    answer,
		Sources:   sources,
		SessionID: req.SessionID,
		Timestamp: time.Now().UTC().Format(timestampLayout),
	})
}

func (s *Server) countUnauthorized() {
	s.mu.Lock()
	s.stats.Unauthorized++
	s.mu.Unlock()
}

// =============================================================================
// SERVER LIFECYCLE
// =============================================================================

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.logger.Info("dev server listening", "addr", s.cfg.Addr, "auth", s.cfg.Token != "")
	return srv.ListenAndServe()
}

// Shutdown gracefully stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("dev server shutting down")
	return srv.Shutdown(ctx)
}

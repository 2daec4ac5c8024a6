// Package ws provides a WebSocket alternative to the SSE progress
// stream for clients behind proxies that buffer SSE responses.
package ws

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/mhalvors/docchat/internal/config"
	"github.com/mhalvors/docchat/internal/domain"
	"github.com/mhalvors/docchat/internal/registry"
	"github.com/mhalvors/docchat/internal/session"
	"github.com/mhalvors/docchat/internal/stream"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 20 * time.Second
)

// Server handles WebSocket progress streams.
type Server struct {
	cfg      *config.Config
	sessions *session.Store
	registry *registry.Registry
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, sessions *session.Store, reg *registry.Registry) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers routes with the echo server.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/sessions/:session_id/runs/:run_id/ws", s.HandleStream)
}

// HandleStream upgrades the connection and streams the run's events as
// JSON text frames, one event per frame. Delivery semantics match the
// SSE endpoint, including the ?cursor=<n> resume parameter.
func (s *Server) HandleStream(c echo.Context) error {
	sessionID := c.Param("session_id")
	runID := c.Param("run_id")

	cursor := 0
	if raw := c.QueryParam("cursor"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid cursor"})
		}
		cursor = n
	}

	if s.sessions.Get(sessionID) == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	run := s.registry.Get(runID)
	if run != nil && run.SessionID != sessionID {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "run does not belong to session"})
	}
	var archived []domain.Event
	if run == nil {
		archived = s.sessions.ArchivedEvents(sessionID, runID)
		if archived == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
		}
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WARN: websocket upgrade failed: %v", err)
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// Drain client frames so pongs and close frames are processed; any
	// read error ends the stream.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sink := &wsSink{conn: conn}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sink.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()
	defer func() { cancel(); <-done }()

	if run == nil {
		err = stream.Replay(sessionID, runID, archived, cursor, sink)
	} else {
		coord := stream.New(run, cursor, stream.Config{
			PollInterval:   s.cfg.StreamPollInterval,
			HeartbeatPolls: s.cfg.StreamHeartbeatPolls,
			MaxPolls:       s.cfg.StreamMaxPolls,
		})
		err = coord.Stream(ctx, sink)
	}
	if err != nil && ctx.Err() == nil {
		log.Printf("WARN: websocket stream for run %s: %v", runID, err)
	}

	sink.close()
	return nil
}

// wsSink serializes writes to one connection; the ping ticker and the
// delivery loop both write.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(evt domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(evt)
}

func (s *wsSink) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

func (s *wsSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

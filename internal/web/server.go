package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"metazip/internal/cleaner"
	"metazip/internal/codec"
	"metazip/internal/config"
	"metazip/internal/engine"
	"metazip/internal/statistics"
	"metazip/internal/verify"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	version    string
	engine     *engine.Engine
	verifier   verify.Verifier
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.Mutex

	// Current clean run state
	operationMutex sync.RWMutex
	stopped        bool
	isRunning      bool
	cancelRun      context.CancelFunc
	currentStats   *statistics.Statistics
	lastBatch      *cleaner.Batch
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported by /api/status.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithVerifier checks files written by clean runs for residual metadata.
func WithVerifier(v verify.Verifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithEngine replaces the engine built from the configuration.
func WithEngine(e *engine.Engine) Option {
	return func(s *Server) { s.engine = e }
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log,
		version: "dev",
		engine: engine.New(engine.WithCodecOptions(
			codec.WithJPEGQuality(cfg.Processing.JPEGQuality),
			codec.WithTIFFCompression(cfg.TIFFCompressionType()),
			codec.WithMaxDecodeBytes(cfg.Limits.MaxDecodeBytes),
		)),
		verifier:  verify.NopVerifier{},
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
	}
	s.wsUpgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(headersMiddleware, s.loggingMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/metadata", s.handleMetadata).Methods(http.MethodPost)
	api.HandleFunc("/strip", s.handleStrip).Methods(http.MethodPost)
	api.HandleFunc("/process", s.handleProcess).Methods(http.MethodPost)
	api.HandleFunc("/savings", s.handleSavings).Methods(http.MethodGet)
	api.HandleFunc("/dimensions", s.handleDimensions).Methods(http.MethodPost)
	api.HandleFunc("/batch", s.handleBatch).Methods(http.MethodPost)
	api.HandleFunc("/clean", s.handleClean).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/directories", s.handleListDirectories).Methods(http.MethodGet)
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods(http.MethodGet)

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on port until Stop is called. It returns
// http.ErrServerClosed after a graceful stop.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	s.operationMutex.Lock()
	if s.stopped {
		s.operationMutex.Unlock()
		return http.ErrServerClosed
	}
	s.httpServer = srv
	s.operationMutex.Unlock()

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return srv.ListenAndServe()
}

// Stop cancels a running clean, closes websocket clients and shuts the HTTP
// server down.
func (s *Server) Stop(ctx context.Context) error {
	s.operationMutex.Lock()
	s.stopped = true
	if s.cancelRun != nil {
		s.cancelRun()
	}
	srv := s.httpServer
	s.operationMutex.Unlock()

	s.wsMutex.Lock()
	for conn := range s.wsClients {
		conn.Close()
		delete(s.wsClients, conn)
	}
	s.wsMutex.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.Server.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcastWSMessage sends one message to every client. Writes are
// serialized because a websocket connection allows a single writer.
func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	msgBytes, err := json.Marshal(WSMessage{Type: messageType, Data: data})
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

// clientCount returns the number of connected websocket clients.
func (s *Server) clientCount() int {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()
	return len(s.wsClients)
}

package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/moyoez/dropzone-go/api/controllers"
	"github.com/moyoez/dropzone-go/api/middlewares"
	"github.com/moyoez/dropzone-go/api/models"
	"github.com/moyoez/dropzone-go/api/notifyhub"
	"github.com/moyoez/dropzone-go/tool"
	"github.com/moyoez/dropzone-go/upload"
)

// Options wires the server to the upload core and the request guards.
type Options struct {
	Port          int
	Protocol      string // http or https
	Pin           string
	InitPerMinute int
	InitBurst     int
	// MaxChunkBytes caps one chunk request body; 0 leaves it unbounded.
	MaxChunkBytes int64
}

// Server represents the HTTP API server for the upload endpoints
type Server struct {
	opts    Options
	engine  *upload.Engine
	batches *upload.BatchTracker
	router  *gin.Engine
	server  *http.Server
	mu      sync.RWMutex
}

func NewServer(opts Options, engine *upload.Engine, batches *upload.BatchTracker) *Server {
	if opts.Protocol == "" {
		opts.Protocol = "http"
	}
	return &Server{opts: opts, engine: engine, batches: batches}
}

// Handler builds the router. Exposed so tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.router == nil {
		s.router = s.setupRoutes()
	}
	return s.router
}

func (s *Server) setupRoutes() *gin.Engine {
	if tool.DefaultLogger.GetLevel() == log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	uploadCtrl := controllers.NewUploadController(s.engine)
	cancelCtrl := controllers.NewCancelController(s.engine)
	statusCtrl := controllers.NewStatusController(s.engine, s.batches)

	uploads := engine.Group("/api/upload", middlewares.RequirePin(s.opts.Pin, models.NewPinFailures()))
	{
		uploads.POST("/init", middlewares.RateLimit(s.opts.InitPerMinute, s.opts.InitBurst), uploadCtrl.HandleInit)
		uploads.POST("/chunk/:uploadId", middlewares.LimitBody(s.opts.MaxChunkBytes), uploadCtrl.HandleChunk)
		uploads.POST("/cancel/:uploadId", cancelCtrl.HandleCancel)
	}
	self := engine.Group("/api/self/v1", middlewares.OnlyAllowLocal)
	{
		self.GET("/status", statusCtrl.UserStatus)
		self.GET("/config", controllers.UserConfigGet)
		self.GET("/qrcode", controllers.GenerateQRCode) // QR code PNG (same params as api.qrserver.com)
		if hub := models.GetNotifyHub(); hub != nil {
			self.GET("/notify-ws", notifyhub.HandleNotifyWS(hub))
		}
	}
	return engine
}

// Start serves until Shutdown is called. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	handler := s.Handler()

	s.mu.Lock()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	tool.DefaultLogger.Infof("Starting API server on %s://0.0.0.0:%d", s.opts.Protocol, s.opts.Port)
	for _, u := range tool.UploadURLs(s.opts.Protocol, s.opts.Port) {
		tool.DefaultLogger.Infof("[Server] Upload page reachable at %s", u)
	}

	var err error
	if s.opts.Protocol == "https" {
		cfg := tool.GetCurrentConfig()
		cert, generated, certErr := tool.LoadOrCreateTLSCert(cfg)
		if certErr != nil {
			return fmt.Errorf("failed to get TLS certificate: %v", certErr)
		}
		if generated {
			if err := tool.PersistAppConfig(cfg); err != nil {
				tool.DefaultLogger.Warnf("[Server] Failed to store generated certificate: %v", err)
			}
		}
		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
		tool.DefaultLogger.Infof("TLS certificate configured for HTTPS")
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

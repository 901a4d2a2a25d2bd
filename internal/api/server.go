// Package api provides the HTTP surface of the deskmcp tool server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/deskmcp/deskmcp/internal/service/toolserver"
	"github.com/deskmcp/deskmcp/internal/telemetry"
	"github.com/deskmcp/deskmcp/pkg/types"
	"github.com/deskmcp/deskmcp/pkg/version"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	V0PathPrefix    = "/v0"
	V0ApiPathPrefix = "/api" + V0PathPrefix

	shutdownTimeout = 5 * time.Second
)

type ServerOptions struct {
	// Host is the interface to bind the server to, eg- 127.0.0.1
	Host string
	// Port is the HTTP port to bind the server to
	Port string

	// ToolServer holds the tools exposed by this server.
	ToolServer *toolserver.ToolServerService

	Logger        *zap.Logger
	OtelProviders *telemetry.Providers
}

// Server exposes a ToolServerService over MCP (SSE and streamable HTTP) and a small REST API.
type Server struct {
	addr   string
	router *gin.Engine

	// mcpServer is the MCP server instance carrying the tools of toolServer
	mcpServer  *server.MCPServer
	toolServer *toolserver.ToolServerService

	logger        *zap.Logger
	otelProviders *telemetry.Providers
}

// NewServer initializes a new Gin server for the tool server
func NewServer(opts *ServerOptions) (*Server, error) {
	if opts == nil || opts.ToolServer == nil {
		return nil, errors.New("tool server must not be nil")
	}
	s := &Server{
		addr:          net.JoinHostPort(opts.Host, opts.Port),
		toolServer:    opts.ToolServer,
		logger:        opts.Logger,
		otelProviders: opts.OtelProviders,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	s.mcpServer = server.NewMCPServer(
		opts.ToolServer.Name(),
		version.GetVersion(),
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	opts.ToolServer.Register(s.mcpServer)

	r, err := s.setupRouter()
	if err != nil {
		return nil, err
	}
	s.router = r

	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until ctx is cancelled (blocking call).
// On cancellation the server is shut down gracefully.
func (s *Server) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("tool server listening", zap.String("addr", l.Addr().String()))
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to run the server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// open SSE streams never finish on their own, so they are cut after the timeout
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("failed to shut down the server: %w", err)
		}
		s.logger.Info("tool server stopped")
		return nil
	})
	return g.Wait()
}

// setupRouter sets up the Gin router with the MCP endpoints and API endpoints.
func (s *Server) setupRouter() (*gin.Engine, error) {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	// if otel is enabled, setup prometheus metrics endpoint
	if s.otelProviders != nil && s.otelProviders.IsEnabled() {
		// instrument gin
		r.Use(otelgin.Middleware(s.otelProviders.ServiceName()))

		// expose prometheus metrics endpoint
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET(
		"/health",
		func(c *gin.Context) {
			c.JSON(http.StatusOK, types.HealthStatus{Status: "ok"})
		},
	)

	r.GET(
		"/metadata",
		func(c *gin.Context) {
			m := &types.ServerMetadata{
				Version: version.GetVersion(),
			}
			c.JSON(http.StatusOK, m)
		},
	)

	// Set up the streamable http transport on /mcp
	streamableHTTPServer := server.NewStreamableHTTPServer(s.mcpServer)
	r.Any("/mcp", gin.WrapH(streamableHTTPServer))

	// Set up the SSE transport on /sse, clients post their messages to /message
	sseServer := server.NewSSEServer(s.mcpServer)
	r.Any("/sse", gin.WrapH(sseServer.SSEHandler()))
	r.Any("/message", gin.WrapH(sseServer.MessageHandler()))

	apiV0 := r.Group(V0ApiPathPrefix)
	{
		apiV0.GET("/tools", s.listToolsHandler())
		apiV0.GET("/tool", s.getToolHandler())
		apiV0.POST("/tools/invoke", s.invokeToolHandler())
	}

	return r, nil
}

// requestLogger logs every request at debug level.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug(
			"handled request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

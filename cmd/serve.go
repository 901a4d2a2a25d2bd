package cmd

import (
	"fmt"

	"github.com/deskmcp/deskmcp/internal/api"
	"github.com/deskmcp/deskmcp/internal/config"
	"github.com/deskmcp/deskmcp/internal/service/toolserver"
	"github.com/deskmcp/deskmcp/internal/telemetry"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveCmdBindHost string
	serveCmdBindPort string
	serveCmdDir      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tool server",
	Long: "Starts the deskmcp tool server.\n\n" +
		"The server exposes a single tool, list_desktop_files, which lists the names of all files and folders\n" +
		"directly inside a fixed directory (~/Desktop by default).\n" +
		"MCP clients can connect over SSE on /sse or over streamable http on /mcp.\n" +
		"A small REST API is also available under /api/v0.\n\n" +
		"Set OTEL_ENABLED=true to expose Prometheus metrics on /metrics.",
	RunE: runServe,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "1",
	},
}

func init() {
	serveCmd.Flags().StringVar(
		&serveCmdBindHost,
		"host",
		"",
		fmt.Sprintf("interface to bind the HTTP server to (default %s)", config.BindHostDefault),
	)
	serveCmd.Flags().StringVar(
		&serveCmdBindPort,
		"port",
		"",
		fmt.Sprintf("port to bind the HTTP server to (overrides env var %s)", config.BindPortEnvVar),
	)
	serveCmd.Flags().StringVar(
		&serveCmdDir,
		"dir",
		"",
		fmt.Sprintf("directory listed by the tool (overrides env var %s)", config.DirEnvVar),
	)

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ts := cfg.ToolServer
	if serveCmdBindHost != "" {
		ts.Host = serveCmdBindHost
	}
	if serveCmdBindPort != "" {
		ts.Port = serveCmdBindPort
	}
	if serveCmdDir != "" {
		ts.Dir = serveCmdDir
	}

	otelProviders, err := telemetry.Init(cmd.Context(), &telemetry.Config{
		ServiceName: "deskmcp",
		Enabled:     cfg.TelemetryEnabled,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Opentelemetry providers: %w", err)
	}
	defer func() {
		if err := otelProviders.Shutdown(cmd.Context()); err != nil {
			cmd.Printf("Warning: failed to shutdown opentelemetry providers: %v\n", err)
		}
	}()

	// The no-op implementation is used unless telemetry is enabled,
	// so the rest of the code can record metrics unconditionally.
	metrics := telemetry.NewNoopCustomMetrics()
	if otelProviders.IsEnabled() {
		metrics, err = telemetry.NewOtelCustomMetrics(otelProviders.Meter)
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	// the directory is not checked here, an unreadable directory is reported per tool call
	svc, err := toolserver.NewToolServerService(&toolserver.ServiceConfig{
		Dir:     ts.Dir,
		Fs:      afero.NewOsFs(),
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create tool server: %w", err)
	}

	s, err := api.NewServer(&api.ServerOptions{
		Host:          ts.Host,
		Port:          ts.Port,
		ToolServer:    svc,
		Logger:        logger,
		OtelProviders: otelProviders,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("serving directory", zap.String("dir", ts.Dir))
	cmd.Printf("deskmcp tool server listening on http://%s\n", s.Addr())
	cmd.Printf("  SSE endpoint:             http://%s/sse\n", s.Addr())
	cmd.Printf("  Streamable HTTP endpoint: http://%s/mcp\n\n", s.Addr())

	if err := s.Start(cmd.Context()); err != nil {
		return fmt.Errorf("failed to run the server: %w", err)
	}
	return nil
}

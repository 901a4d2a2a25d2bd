// Package cmd implements the deskmcp command line interface.
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/deskmcp/deskmcp/client"
	"github.com/deskmcp/deskmcp/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type subCommandGroup string

const (
	subCommandGroupBasic    subCommandGroup = "basic"
	subCommandGroupAdvanced subCommandGroup = "advanced"
)

const apiClientTimeout = 30 * time.Second

var (
	configFilePath string
	serverURL      string
	logLevel       string
)

var (
	// cfg is the configuration loaded before any sub-command runs
	cfg *config.Config
	// logger is the structured logger shared by every component started by a sub-command
	logger *zap.Logger
	// apiClient talks to the REST API of a running tool server
	apiClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "deskmcp",
	Short: "A minimal MCP tool server and tool-calling agent",
	Long: "deskmcp runs a small MCP tool server that lists the files in a directory (your Desktop by default)\n" +
		"and an agent that lets a local language model decide whether to call that tool to answer your request.\n\n" +
		"Configuration is read from (highest precedence first): flags, environment variables, a .env file,\n" +
		"the YAML file given with --config and built-in defaults.",
	SilenceUsage:      true,
	PersistentPreRunE: initRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(
		&serverURL,
		"server-url",
		"",
		fmt.Sprintf("base URL of the tool server (overrides env var %s)", config.ToolServerURLEnvVar),
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel,
		"log-level",
		"",
		fmt.Sprintf("log level: debug, info, warn or error (overrides env var %s)", config.LogLevelEnvVar),
	)
}

// Execute runs the root command until it completes or the process receives an interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	arrangeSubCommands(rootCmd)
	return rootCmd.ExecuteContext(ctx)
}

// arrangeSubCommands groups sub-commands in the help output by their "group" annotation,
// ordered by their "order" annotation.
func arrangeSubCommands(root *cobra.Command) {
	if len(root.Groups()) > 0 {
		return
	}
	root.AddGroup(
		&cobra.Group{ID: string(subCommandGroupBasic), Title: "Basic Commands:"},
		&cobra.Group{ID: string(subCommandGroupAdvanced), Title: "Advanced Commands:"},
	)

	cobra.EnableCommandSorting = false
	cmds := root.Commands()
	slices.SortStableFunc(cmds, func(a, b *cobra.Command) int {
		return commandOrder(a) - commandOrder(b)
	})
	root.ResetCommands()
	for _, c := range cmds {
		c.GroupID = c.Annotations["group"]
		root.AddCommand(c)
	}
}

func commandOrder(c *cobra.Command) int {
	order, err := strconv.Atoi(c.Annotations["order"])
	if err != nil {
		return 1 << 10
	}
	return order
}

// initRoot loads the configuration and builds the shared logger and API client.
func initRoot(cmd *cobra.Command, _ []string) error {
	// a missing .env file is not an error
	_ = godotenv.Load()

	c, err := config.Load(afero.NewOsFs(), configFilePath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if serverURL != "" {
		c.ToolServers = []config.RemoteToolServer{{Name: config.DefaultToolServerName, URL: serverURL}}
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c

	l, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger = l

	apiClient = client.NewClient(cfg.ToolServers[0].URL, &http.Client{Timeout: apiClientTimeout})
	return nil
}

// newLogger builds the process logger.
// debug level uses zap's development config, everything else the production config.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if lvl == zapcore.DebugLevel {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

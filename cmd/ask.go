package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/deskmcp/deskmcp/internal/agent"
	"github.com/deskmcp/deskmcp/internal/backend"
	"github.com/deskmcp/deskmcp/internal/config"
	"github.com/deskmcp/deskmcp/internal/service/mcp"
	"github.com/deskmcp/deskmcp/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var askCmdShowTools bool

var askCmd = &cobra.Command{
	Use:   "ask <request>",
	Short: "Ask the agent to do something",
	Long: "Sends a natural-language request to the agent.\n\n" +
		"The agent discovers the tools of the configured tool servers, lets the model decide whether to call one,\n" +
		"runs the call and asks the model for a final answer.\n" +
		"The tool server must be running (see `deskmcp serve`), and so must the model backend\n" +
		"(eg- llama.cpp's llama-server on http://localhost:8080/v1).",
	Example: `  deskmcp ask "What files are on my desktop?"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runAsk,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "2",
	},
}

func init() {
	askCmd.Flags().BoolVar(&askCmdShowTools, "show-tools", false, "print the tools discovered before running the request")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	ctx := cmd.Context()
	if cfg.Agent.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Agent.TimeoutSec)*time.Second)
		defer cancel()
	}

	answer, err := ask(ctx, cfg, logger, request, askCmdShowTools, cmd.OutOrStderr())
	if err != nil {
		return err
	}
	cmd.Printf("Agent output: %s\n", answer)
	return nil
}

// ask connects to the tool servers and the model backend described by c and runs a single request.
func ask(
	ctx context.Context, c *config.Config, logger *zap.Logger, request string, showTools bool, out io.Writer,
) (string, error) {
	b, err := backend.New(&backend.Config{
		Provider: c.Backend.Provider,
		URL:      c.Backend.URL,
		Model:    c.Backend.Model,
		APIKey:   c.Backend.APIKey,
		Timeout:  time.Duration(c.Backend.TimeoutSec) * time.Second,
		Logger:   logger,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create model backend: %w", err)
	}

	sessions := make([]*mcp.Session, 0, len(c.ToolServers))
	defer func() {
		for _, s := range sessions {
			if err := s.Close(); err != nil {
				logger.Debug("failed to close tool server session", zap.String("server", s.Name()), zap.Error(err))
			}
		}
	}()
	servers := make([]agent.ToolServer, 0, len(c.ToolServers))
	for _, ts := range c.ToolServers {
		transport, err := types.ValidateTransport(ts.Transport)
		if err != nil {
			return "", err
		}
		session, err := mcp.Dial(ctx, &mcp.SessionConfig{
			Name:              ts.Name,
			URL:               ts.URL,
			Transport:         transport,
			InitReqTimeoutSec: c.McpInitReqTimeoutSec,
			Logger:            logger,
		})
		if err != nil {
			return "", &agent.Error{Kind: agent.KindDiscovery, Message: "failed to connect to tool server " + ts.Name, Err: err}
		}
		sessions = append(sessions, session)
		servers = append(servers, session)
	}

	a, err := agent.New(b, servers, &agent.Config{
		Instructions: c.Agent.Instructions,
		MaxToolCalls: c.Agent.MaxToolCalls,
		Logger:       logger,
	})
	if err != nil {
		return "", err
	}

	if showTools {
		catalog, err := a.Discover(ctx)
		if err != nil {
			return "", err
		}
		fmt.Fprintln(out, "Tools available from MCP server:")
		for _, t := range catalog.Tools() {
			fmt.Fprintf(out, "- %s: %s\n", t.Name, t.Description)
		}
		fmt.Fprintln(out)
	}

	res, err := a.Run(ctx, request)
	if err != nil {
		var agentErr *agent.Error
		if errors.As(err, &agentErr) {
			logger.Debug("agent run failed", zap.String("kind", string(agentErr.Kind)), zap.Error(err))
		}
		return "", err
	}
	for _, tc := range res.ToolCalls {
		logger.Info("tool called", zap.String("server", tc.Server), zap.String("tool", tc.Tool))
	}
	return res.Answer, nil
}

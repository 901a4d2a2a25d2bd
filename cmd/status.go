package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/deskmcp/deskmcp/internal/backend"
	"github.com/spf13/cobra"
)

const statusProbeTimeout = 5 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the tool server and the model backend are reachable",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "6",
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	healthy := true

	if _, err := apiClient.Health(); err != nil {
		healthy = false
		cmd.Printf("tool server    %s  unreachable: %v\n", apiClient.BaseURL(), err)
	} else {
		version := "unknown"
		if m, err := apiClient.Metadata(); err == nil {
			version = m.Version
		}
		cmd.Printf("tool server    %s  ok (version %s)\n", apiClient.BaseURL(), version)
	}

	b, err := backend.New(&backend.Config{
		Provider: cfg.Backend.Provider,
		URL:      cfg.Backend.URL,
		Model:    cfg.Backend.Model,
		APIKey:   cfg.Backend.APIKey,
		Timeout:  statusProbeTimeout,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create model backend: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), statusProbeTimeout)
	defer cancel()
	if err := b.Ping(ctx); err != nil {
		healthy = false
		cmd.Printf("model backend  %s  unreachable: %v\n", cfg.Backend.URL, err)
	} else {
		cmd.Printf("model backend  %s  ok (%s, model %s)\n", cfg.Backend.URL, cfg.Backend.Provider, cfg.Backend.Model)
	}

	if !healthy {
		return fmt.Errorf("one or more components are unreachable")
	}
	return nil
}

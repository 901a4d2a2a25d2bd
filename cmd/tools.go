package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools of the tool server",
	Args:  cobra.NoArgs,
	RunE:  runListTools,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "3",
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runListTools(cmd *cobra.Command, args []string) error {
	tools, err := apiClient.ListTools()
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	if len(tools) == 0 {
		cmd.Println("There are no tools available")
		return nil
	}

	for i, t := range tools {
		cmd.Printf("%d. %s\n", i+1, t.Name)
		if t.Description != "" {
			cmd.Printf("   %s\n", t.Description)
		}
	}
	cmd.Println()
	cmd.Println("Run 'usage <tool name>' to see a tool's usage or 'invoke <tool name>' to call one")
	return nil
}

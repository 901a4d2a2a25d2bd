package cmd

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage <name>",
	Short: "Get usage information for a tool",
	Args:  cobra.ExactArgs(1),
	RunE:  runGetToolUsage,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "4",
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runGetToolUsage(cmd *cobra.Command, args []string) error {
	t, err := apiClient.GetTool(args[0])
	if err != nil {
		return fmt.Errorf("failed to get tool '%s': %w", args[0], err)
	}

	cmd.Println(t.Name)
	cmd.Println(t.Description)

	if len(t.InputSchema.Properties) == 0 {
		cmd.Println("This tool does not require any input parameters.")
	} else {
		cmd.Println()
		cmd.Println("Input Parameters:")
		for _, k := range slices.Sorted(maps.Keys(t.InputSchema.Properties)) {
			v := t.InputSchema.Properties[k]
			requiredOrOptional := "optional"
			if slices.Contains(t.InputSchema.Required, k) {
				requiredOrOptional = "required"
			}

			boundary := strings.Repeat("=", len(k)+len(requiredOrOptional)+20)

			cmd.Println(boundary)
			cmd.Printf("%s (%s)\n", k, requiredOrOptional)

			j, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				// Simply print the raw object if we fail to marshal it
				cmd.Println(v)
			} else {
				cmd.Println(string(j))
			}
			cmd.Println(boundary)

			cmd.Println()
		}
	}

	// Print annotations if present
	if len(t.Annotations) > 0 {
		cmd.Println()
		cmd.Println("Annotations:")
		for _, k := range slices.Sorted(maps.Keys(t.Annotations)) {
			cmd.Printf("* %s = %v\n", k, t.Annotations[k])
		}
	}

	return nil
}

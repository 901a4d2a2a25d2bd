package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var invokeCmdInput string

var invokeCmd = &cobra.Command{
	Use:   "invoke <name>",
	Short: "Invoke a tool on the tool server",
	Long: "Invokes a tool and prints its output, one entry per line.\n" +
		"Tool arguments can be supplied as a JSON object with --input.",
	Example: `  deskmcp invoke list_desktop_files
  deskmcp invoke list_desktop_files --input '{}'`,
	Args: cobra.ExactArgs(1),
	RunE: runInvokeTool,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "5",
	},
}

func init() {
	invokeCmd.Flags().StringVar(&invokeCmdInput, "input", "{}", "valid JSON payload of tool arguments")
	rootCmd.AddCommand(invokeCmd)
}

func runInvokeTool(cmd *cobra.Command, args []string) error {
	var input map[string]any
	if err := json.Unmarshal([]byte(invokeCmdInput), &input); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}

	res, err := apiClient.InvokeTool(args[0], input)
	if err != nil {
		return fmt.Errorf("failed to invoke tool: %w", err)
	}
	if res.Failed() {
		return fmt.Errorf("tool %s returned an error: %s", args[0], res.Error)
	}

	if len(res.Output) == 0 {
		cmd.Println("(no entries)")
		return nil
	}
	for _, entry := range res.Output {
		cmd.Println(entry)
	}
	return nil
}

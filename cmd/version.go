package cmd

import (
	"github.com/deskmcp/deskmcp/pkg/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of deskmcp",
	Args:  cobra.NoArgs,
	// version needs no configuration
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.GetVersion())
	},
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "7",
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

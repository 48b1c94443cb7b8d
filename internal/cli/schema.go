package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the backend collection if it is missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		a, err := buildApp(cfg, GetRootDir(), logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.EnsureSchema(cmd.Context()); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema ready on %s backend\n", cfg.Backend.Type)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

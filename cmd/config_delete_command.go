package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the active configuration file.",
	Long: `Delete the configuration file currently selected by tjsync.

If no configuration file is active, the command returns an error.
The run database is left untouched, see "tjsync delete".`,
	Example: `
  # Delete active config
  tjsync config delete

  # Delete config at a custom path
  tjsync --configFile ./custom-tjsync.yaml config delete
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.ConfigFileUsed()
		if configPath == "" {
			return errors.New("no configuration file found")
		}

		if err := os.Remove(configPath); err != nil {
			return fmt.Errorf("delete configuration file: %w", err)
		}

		fmt.Printf("Configuration file successfully deleted: %s\n", configPath)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configDeleteCmd)
}

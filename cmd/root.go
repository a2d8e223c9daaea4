/*
Copyright © 2025 riad@rsworld.eu

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tjsync/config"
	"tjsync/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tjsync",
	Short: "Compare Toggl time entries with Jira worklogs and sync the differences.",
	Long: `
**********************************************
*              TOGGL <-> JIRA                *
**********************************************

This CLI fetches Toggl time entries and Jira worklogs for a rolling window,
pairs them, and computes the actions that bring both sides in sync.
Actions are stored as runs in a local SQLite database so an interrupted
sync can be resumed action by action.
`,
	Example: `
  # Create configuration file
  tjsync config create

  # Show differences of the last 7 days
  tjsync diff

  # Show the window one week earlier
  tjsync diff --delta -7

  # Preview the actions a sync would apply
  tjsync sync --dry-run

  # Apply all actions without prompting
  tjsync sync --yes

  # Resume a stopped run
  tjsync runs resume 6f1c...

  # Export the diff to Excel
  tjsync export --output ./diff.xlsx

  # Start the local JSON API
  tjsync serve --port 8080
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(); err != nil {
			return err
		}
		if !requiresConfig(cmd) {
			return nil
		}

		_, err := config.LoadAndValidate()
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	config.SetDefaults()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "configFile", "", "Config file override (default discovery: $HOME/.tjsync.yaml, then ./.tjsync.yaml)")
}

func requiresConfig(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	switch cmd.Name() {
	case "diff", "sync", "serve", "export", "resume":
		return true
	}
	return false
}

// setupLogging installs the default logger from log.level and log.format.
func setupLogging() error {
	logger, err := logging.New(logging.Options{
		Level:  viper.GetString(config.KeyLogLevel),
		Format: viper.GetString(config.KeyLogFormat),
	})
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	return nil
}

// initConfig reads in a .env file, the config file and ENV variables if set.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Ignoring unreadable .env file:", err)
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".tjsync" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tjsync")
	}

	config.BindEnv(viper.GetViper())

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "No config file found. Create one first with: tjsync config create")
	}
}

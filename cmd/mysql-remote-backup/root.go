package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fgeck/mysql-remote-backup/internal/config"
	"github.com/fgeck/mysql-remote-backup/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	envFile    string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "mysql-remote-backup",
	Short: "Back up a remote MySQL database over SSH",
	Long: `mysql-remote-backup dumps a MySQL database on a remote host and fetches
the result:
  - runs mysqldump on the remote host over SSH
  - downloads the dump file via SFTP
  - optionally removes the remote copy after download

Configuration comes from environment variables, optionally layered over an
env file. Use as a one-shot command with an external scheduler (cron,
systemd timer, etc.)`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", ".env", "env file with configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(encryptCmd)
}

func setupLogging() {
	// Set output format
	if jsonOutput {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadConfig resolves configuration from the environment plus the env file.
// The default env file is skipped when absent; an explicitly flagged one
// must exist.
func loadConfig() (*models.BackupConfig, error) {
	parser := config.NewParser()

	if _, err := os.Stat(envFile); err != nil {
		if rootCmd.PersistentFlags().Changed("env-file") {
			return nil, fmt.Errorf("env file not found: %s", envFile)
		}
		return parser.Load()
	}

	return parser.LoadFile(envFile)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

package main

import (
	"fmt"

	"github.com/fgeck/mysql-remote-backup/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long:  `Validate the resolved configuration without connecting anywhere.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("SSH:")
	fmt.Printf("  Target: %s@%s:%d\n", cfg.SSH.User, cfg.SSH.Host, cfg.SSH.Port)
	fmt.Printf("  Key: %s\n", cfg.SSH.KeyPath)
	if cfg.SSH.KeyPassphrase != "" {
		fmt.Printf("  Key passphrase: (configured)\n")
	}
	fmt.Printf("  Host key policy: %s\n", cfg.SSH.HostKeyPolicy)
	if cfg.SSH.KnownHostsFile != "" {
		fmt.Printf("  Known hosts file: %s\n", cfg.SSH.KnownHostsFile)
	}
	if cfg.SSH.ConnectTimeout > 0 {
		fmt.Printf("  Connect timeout: %s\n", cfg.SSH.ConnectTimeout)
	}
	fmt.Println()
	fmt.Println("Database:")
	fmt.Printf("  Name: %s\n", cfg.Database.Name)
	fmt.Printf("  Host: %s:%d\n", cfg.Database.Host, cfg.Database.Port)
	fmt.Printf("  User: %s\n", cfg.Database.User)
	if cfg.Database.Password != "" {
		fmt.Printf("  Password: (configured)\n")
	}
	fmt.Println()
	fmt.Println("Backup:")
	fmt.Printf("  Remote dir: %s\n", cfg.RemoteDir)
	fmt.Printf("  Local dir: %s\n", cfg.LocalDir)
	fmt.Printf("  Remove remote copy: %v\n", cfg.RemoveRemote)
	if cfg.CommandTimeout > 0 {
		fmt.Printf("  Command timeout: %s\n", cfg.CommandTimeout)
	}
	if cfg.TransferTimeout > 0 {
		fmt.Printf("  Transfer timeout: %s\n", cfg.TransferTimeout)
	}

	if cfg.CredentialsFile != "" {
		fmt.Println()
		fmt.Println("Credentials:")
		fmt.Printf("  File: %s\n", cfg.CredentialsFile)
		fmt.Printf("  Identity: %s\n", cfg.CredentialsKeyPath)
	}

	if cfg.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram:")
		fmt.Printf("  Chat ID: %s\n", cfg.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
	}

	return nil
}

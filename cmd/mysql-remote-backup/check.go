package main

import (
	"context"
	"fmt"

	"github.com/fgeck/mysql-remote-backup/internal/config"
	"github.com/fgeck/mysql-remote-backup/internal/services/mysql"
	"github.com/fgeck/mysql-remote-backup/internal/services/ssh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify connectivity and remote mysqldump availability",
	Long:  `Connect to the remote host and verify that mysqldump is available, without dumping anything.`,
	RunE:  checkRemote,
}

func checkRemote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx := context.Background()

	sshSvc := ssh.New(log.Logger)
	client, err := sshSvc.Connect(ctx, cfg.SSH)
	if err != nil {
		log.Error().Err(err).Msg("connection check failed")
		return err
	}
	defer func() { _ = client.Close() }()

	mysqlSvc := mysql.New(log.Logger)
	version, err := mysqlSvc.Version(ctx, client)
	if err != nil {
		log.Error().Err(err).Msg("mysqldump is not available on the remote host")
		return err
	}

	fmt.Println("Remote host is ready!")
	fmt.Println()
	fmt.Printf("  Host: %s:%d\n", cfg.SSH.Host, cfg.SSH.Port)
	fmt.Printf("  mysqldump: %s\n", version)

	return nil
}

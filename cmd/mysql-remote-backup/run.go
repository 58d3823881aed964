package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/mysql-remote-backup/internal/config"
	"github.com/fgeck/mysql-remote-backup/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one backup pass",
	Long: `Execute one backup pass:
1. Connect to the remote host over SSH
2. Run mysqldump on the remote host
3. Download the dump file via SFTP
4. Remove the remote copy (if enabled)
5. Report the local path and size`,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	log.Info().
		Str("ssh_host", cfg.SSH.Host).
		Str("database", cfg.Database.Name).
		Str("local_dir", cfg.LocalDir).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	runnerSvc := runner.New(log.Logger)
	report, err := runnerSvc.Run(ctx, *cfg)
	if err != nil {
		log.Error().Err(err).Msg("backup failed")
		return err
	}

	log.Info().
		Str("path", report.Artifact.LocalPath).
		Str("size", runner.FormatSize(report.SizeBytes)).
		Bool("remote_removed", report.RemoteRemoved).
		Msg("backup completed successfully")
	return nil
}

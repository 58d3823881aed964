// Package runner orchestrates the backup workflow.
package runner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fgeck/mysql-remote-backup/internal/backup"
	"github.com/fgeck/mysql-remote-backup/internal/models"
	"github.com/fgeck/mysql-remote-backup/internal/services/mysql"
	"github.com/fgeck/mysql-remote-backup/internal/services/ssh"
	"github.com/fgeck/mysql-remote-backup/internal/services/telegram"
	"github.com/fgeck/mysql-remote-backup/internal/services/transfer"
	"github.com/rs/zerolog"
)

// Service defines the interface for the backup runner.
type Service interface {
	Run(ctx context.Context, cfg models.BackupConfig) (*models.Report, error)
}

// Impl implements the runner Service interface.
type Impl struct {
	sshSvc      ssh.Service
	mysqlSvc    mysql.Service
	transferSvc transfer.Service
	telegramSvc telegram.Service
	logger      zerolog.Logger
	now         func() time.Time
}

// New creates a new runner service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		sshSvc:      ssh.New(logger),
		mysqlSvc:    mysql.New(logger),
		transferSvc: transfer.New(logger),
		telegramSvc: telegram.New(logger),
		logger:      logger,
		now:         time.Now,
	}
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	sshSvc ssh.Service,
	mysqlSvc mysql.Service,
	transferSvc transfer.Service,
	telegramSvc telegram.Service,
	now func() time.Time,
) *Impl {
	return &Impl{
		sshSvc:      sshSvc,
		mysqlSvc:    mysqlSvc,
		transferSvc: transferSvc,
		telegramSvc: telegramSvc,
		logger:      logger,
		now:         now,
	}
}

// FormatSize renders a byte count as megabytes with two decimals.
func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/(1024*1024))
}

// Run executes one backup pass: remote dump, download, optional remote
// cleanup. Any failure terminates the run; open resources are released on
// every exit path, transfer channel before connection.
func (s *Impl) Run(ctx context.Context, cfg models.BackupConfig) (*models.Report, error) {
	start := s.now()
	stage := backup.StageConfigured
	var report *models.Report
	var runErr error

	s.logger.Info().
		Str("ssh_host", cfg.SSH.Host).
		Str("database", cfg.Database.Name).
		Str("local_dir", cfg.LocalDir).
		Msg("starting backup run")

	defer func() {
		if runErr != nil {
			s.logger.Error().
				Str("stage", string(stage)).
				Err(runErr).
				Msg("backup run failed")
		}
		// Send notification if configured
		if cfg.Telegram != nil {
			s.sendNotification(ctx, cfg, start, stage, report, runErr)
		}
	}()

	client, err := s.sshSvc.Connect(ctx, cfg.SSH)
	if err != nil {
		runErr = fmt.Errorf("connect failed: %w", err)
		return nil, runErr
	}
	defer func() { _ = client.Close() }()
	stage = backup.StageConnected

	artifact := mysql.NewArtifact(cfg.Database.Name, cfg.RemoteDir, cfg.LocalDir, s.now())

	if err := s.runDump(ctx, client, cfg, artifact); err != nil {
		runErr = err
		return nil, runErr
	}
	stage = backup.StageDumpExecuted

	channel, err := s.transferSvc.Open(client)
	if err != nil {
		runErr = fmt.Errorf("transfer channel failed: %w", err)
		return nil, runErr
	}
	defer func() { _ = channel.Close() }()

	transferResult, err := s.runDownload(ctx, channel, cfg, artifact)
	if err != nil {
		runErr = err
		return nil, runErr
	}
	stage = backup.StageDownloaded

	report = &models.Report{
		Artifact:  artifact,
		SizeBytes: transferResult.SizeBytes,
	}
	if info, err := os.Stat(artifact.LocalPath); err == nil {
		report.SizeBytes = info.Size()
	}

	if cfg.RemoveRemote {
		if err := channel.Remove(artifact.RemotePath); err != nil {
			// The downloaded artifact is kept; only the remote copy is stale.
			runErr = fmt.Errorf("cleanup failed: %w", &backup.RemoteCleanupError{RemotePath: artifact.RemotePath, Err: err})
			return nil, runErr
		}
		report.RemoteRemoved = true
		stage = backup.StageRemoteCleaned
		s.logger.Info().Str("remote_path", artifact.RemotePath).Msg("remote backup removed")
	}

	report.Duration = time.Since(start)
	stage = backup.StageReported

	s.logger.Info().
		Str("path", artifact.LocalPath).
		Str("size", FormatSize(report.SizeBytes)).
		Dur("duration", report.Duration).
		Msg("backup run completed")

	return report, nil
}

func (s *Impl) runDump(ctx context.Context, client ssh.Client, cfg models.BackupConfig, artifact models.Artifact) error {
	dumpCtx := ctx
	if cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		dumpCtx, cancel = context.WithTimeout(ctx, cfg.CommandTimeout)
		defer cancel()
	}

	result, err := s.mysqlSvc.Dump(dumpCtx, client, cfg.Database, artifact)
	if err != nil {
		return fmt.Errorf("dump failed: %w", err)
	}
	if result.Error != nil {
		return fmt.Errorf("dump failed: %w", result.Error)
	}

	return nil
}

func (s *Impl) runDownload(ctx context.Context, channel transfer.Channel, cfg models.BackupConfig, artifact models.Artifact) (*models.TransferResult, error) {
	transferCtx := ctx
	if cfg.TransferTimeout > 0 {
		var cancel context.CancelFunc
		transferCtx, cancel = context.WithTimeout(ctx, cfg.TransferTimeout)
		defer cancel()
	}

	result, err := channel.Download(transferCtx, artifact.RemotePath, artifact.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("download failed: %w", result.Error)
	}

	return result, nil
}

func (s *Impl) sendNotification(
	ctx context.Context,
	cfg models.BackupConfig,
	startTime time.Time,
	stage backup.Stage,
	report *models.Report,
	runErr error,
) {
	msg := models.TelegramMessage{
		Success:   runErr == nil,
		Host:      cfg.SSH.Host,
		Database:  cfg.Database.Name,
		StartTime: startTime,
		Duration:  time.Since(startTime),
	}

	if runErr != nil {
		msg.Stage = string(stage)
		msg.ErrorMessage = runErr.Error()
	}

	if runErr == nil && report != nil {
		msg.LocalPath = report.Artifact.LocalPath
		msg.SizeBytes = report.SizeBytes
		msg.RemoteRemoved = report.RemoteRemoved
	}

	result, err := s.telegramSvc.SendNotification(ctx, *cfg.Telegram, msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
		return
	}

	s.logger.Info().Msg("Telegram notification sent")
}

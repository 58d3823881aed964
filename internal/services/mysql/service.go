// Package mysql builds and executes the remote mysqldump command.
package mysql

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fgeck/mysql-remote-backup/internal/backup"
	"github.com/fgeck/mysql-remote-backup/internal/models"
	"github.com/fgeck/mysql-remote-backup/internal/services/ssh"
	"github.com/rs/zerolog"
)

const timestampFormat = "20060102_150405"

// Service defines the interface for remote dump operations.
type Service interface {
	Dump(ctx context.Context, client ssh.Client, cfg models.DatabaseConfig, artifact models.Artifact) (*models.DumpResult, error)
	Version(ctx context.Context, client ssh.Client) (string, error)
}

// Impl implements the MySQL Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new MySQL service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// ArtifactFilename returns the timestamped dump filename for a database.
// Uniqueness holds only at second granularity: same-second runs for the
// same database produce the same name.
func ArtifactFilename(database string, now time.Time) string {
	return fmt.Sprintf("%s_backup_%s.sql", database, now.Format(timestampFormat))
}

// NewArtifact describes where the dump for a database is staged remotely
// and stored locally. The remote path is always POSIX.
func NewArtifact(database, remoteDir, localDir string, now time.Time) models.Artifact {
	filename := ArtifactFilename(database, now)
	return models.Artifact{
		Filename:   filename,
		RemotePath: path.Join(remoteDir, filename),
		LocalPath:  filepath.Join(localDir, filename),
		CreatedAt:  now,
	}
}

// DumpCommand builds the remote mysqldump invocation. The password is
// inlined when set, so the returned string must never be logged; use
// RedactedCommand for log output.
func DumpCommand(cfg models.DatabaseConfig, remotePath string) string {
	return buildCommand(cfg, remotePath, cfg.Password)
}

// RedactedCommand is DumpCommand with the password masked.
func RedactedCommand(cfg models.DatabaseConfig, remotePath string) string {
	password := cfg.Password
	if password != "" {
		password = "***"
	}
	return buildCommand(cfg, remotePath, password)
}

func buildCommand(cfg models.DatabaseConfig, remotePath, password string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mysqldump -h %s -P %d -u %s ", cfg.Host, cfg.Port, cfg.User)
	if password != "" {
		fmt.Fprintf(&b, "-p'%s' ", password)
	}
	fmt.Fprintf(&b, "%s > %s", cfg.Name, remotePath)
	return b.String()
}

// Dump runs mysqldump on the remote host, redirecting the dump into the
// artifact's remote path. A nonzero remote exit is reported through the
// result error; the download step must not run in that case.
func (s *Impl) Dump(ctx context.Context, client ssh.Client, cfg models.DatabaseConfig, artifact models.Artifact) (*models.DumpResult, error) {
	start := time.Now()
	result := &models.DumpResult{Artifact: artifact}

	s.logger.Info().
		Str("database", cfg.Name).
		Str("db_host", cfg.Host).
		Int("db_port", cfg.Port).
		Str("remote_path", artifact.RemotePath).
		Msg("starting remote dump")

	session, err := client.NewSession()
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		return result, nil
	}
	defer session.Close()

	s.logger.Debug().
		Str("command", RedactedCommand(cfg, artifact.RemotePath)).
		Msg("executing dump command")

	res, err := s.runCommand(ctx, session, DumpCommand(cfg, artifact.RemotePath))
	if err != nil {
		result.Error = err
		return result, nil
	}
	if res.ExitStatus != 0 {
		result.Error = &backup.CommandError{ExitStatus: res.ExitStatus, Stderr: res.Stderr}
		return result, nil
	}

	result.Duration = time.Since(start)

	s.logger.Info().
		Str("remote_path", artifact.RemotePath).
		Dur("duration", result.Duration).
		Msg("remote dump completed")

	return result, nil
}

// Version reports the remote mysqldump version. Used as a preflight check
// that the dump utility exists on the remote host.
func (s *Impl) Version(ctx context.Context, client ssh.Client) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	res, err := s.runCommand(ctx, session, "mysqldump --version")
	if err != nil {
		return "", err
	}
	if res.ExitStatus != 0 {
		return "", &backup.CommandError{ExitStatus: res.ExitStatus, Stderr: res.Stderr}
	}

	return strings.TrimSpace(res.Stdout), nil
}

// runCommand executes cmd in a goroutine so the wait can be abandoned on
// ctx cancel. The remote command itself is not interrupted.
func (s *Impl) runCommand(ctx context.Context, session ssh.Session, cmd string) (*models.CommandResult, error) {
	resChan := make(chan struct {
		res *models.CommandResult
		err error
	}, 1)

	go func() {
		res, err := session.Run(cmd)
		resChan <- struct {
			res *models.CommandResult
			err error
		}{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resChan:
		if r.err != nil {
			return nil, fmt.Errorf("command failed: %w", r.err)
		}
		return r.res, nil
	}
}

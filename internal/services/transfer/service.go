// Package transfer downloads and removes remote files over SFTP.
package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fgeck/mysql-remote-backup/internal/backup"
	"github.com/fgeck/mysql-remote-backup/internal/models"
	"github.com/fgeck/mysql-remote-backup/internal/services/ssh"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// Service opens transfer channels on established SSH connections.
type Service interface {
	Open(client ssh.Client) (Channel, error)
}

// Channel is an open file transfer channel. Closing it releases the
// channel but not the underlying SSH connection.
type Channel interface {
	Download(ctx context.Context, remotePath, localPath string) (*models.TransferResult, error)
	Remove(remotePath string) error
	Close() error
}

// FS is the subset of remote file operations a channel needs, wrapped for
// mocking.
type FS interface {
	Open(path string) (io.ReadCloser, error)
	Stat(path string) (os.FileInfo, error)
	Remove(path string) error
	Close() error
}

type sftpFS struct {
	client *sftp.Client
}

func (f *sftpFS) Open(path string) (io.ReadCloser, error) {
	file, err := f.client.Open(path)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *sftpFS) Stat(path string) (os.FileInfo, error) {
	return f.client.Stat(path)
}

func (f *sftpFS) Remove(path string) error {
	return f.client.Remove(path)
}

func (f *sftpFS) Close() error {
	return f.client.Close()
}

// Impl implements the transfer Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new transfer service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// Open starts an SFTP channel on the connection.
func (s *Impl) Open(client ssh.Client) (Channel, error) {
	sftpClient, err := client.SFTP()
	if err != nil {
		return nil, &backup.TransferChannelError{Err: err}
	}

	s.logger.Debug().Msg("transfer channel opened")

	return &channel{fs: &sftpFS{client: sftpClient}, logger: s.logger}, nil
}

// NewChannelWithFS creates a channel backed by a custom FS (for testing).
func NewChannelWithFS(logger zerolog.Logger, fs FS) Channel {
	return &channel{fs: fs, logger: logger}
}

type channel struct {
	fs     FS
	logger zerolog.Logger
}

// Download copies the remote file to localPath, overwriting any existing
// local file. A partial local file is removed on failure.
func (c *channel) Download(ctx context.Context, remotePath, localPath string) (*models.TransferResult, error) {
	start := time.Now()
	result := &models.TransferResult{
		RemotePath: remotePath,
		LocalPath:  localPath,
	}

	c.logger.Info().
		Str("remote_path", remotePath).
		Str("local_path", localPath).
		Msg("downloading backup")

	// Size is only used to scale the progress bar; a failed stat still
	// allows the download to proceed.
	size := int64(-1)
	if info, err := c.fs.Stat(remotePath); err == nil {
		size = info.Size()
	}

	n, err := c.copyToLocal(ctx, remotePath, localPath, size)
	if err != nil {
		_ = os.Remove(localPath)
		if ctx.Err() != nil {
			result.Error = ctx.Err()
		} else {
			result.Error = &backup.TransferError{RemotePath: remotePath, LocalPath: localPath, Err: err}
		}
		return result, nil
	}

	result.SizeBytes = n
	result.Duration = time.Since(start)

	c.logger.Info().
		Str("local_path", localPath).
		Int64("size_bytes", n).
		Dur("duration", result.Duration).
		Msg("download completed")

	return result, nil
}

func (c *channel) copyToLocal(ctx context.Context, remotePath, localPath string, size int64) (int64, error) {
	remote, err := c.fs.Open(remotePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open remote file: %w", err)
	}
	defer func() { _ = remote.Close() }()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return 0, fmt.Errorf("failed to create local directory: %w", err)
	}

	local, err := os.Create(localPath) //nolint:gosec // localPath is controlled by caller
	if err != nil {
		return 0, fmt.Errorf("failed to create local file: %w", err)
	}
	defer func() { _ = local.Close() }()

	bar := progressbar.DefaultBytes(size, "downloading")

	// Copy in a goroutine so the wait can be abandoned on ctx cancel.
	copied := make(chan struct {
		n   int64
		err error
	}, 1)

	go func() {
		n, err := io.Copy(io.MultiWriter(local, bar), remote)
		if err != nil {
			_ = bar.Exit()
		} else {
			_ = bar.Finish()
		}
		copied <- struct {
			n   int64
			err error
		}{n, err}
	}()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case r := <-copied:
		if r.err != nil {
			return r.n, fmt.Errorf("failed to copy remote file: %w", r.err)
		}
		if err := local.Close(); err != nil {
			return r.n, fmt.Errorf("failed to finalize local file: %w", err)
		}
		return r.n, nil
	}
}

// Remove deletes the remote file.
func (c *channel) Remove(remotePath string) error {
	c.logger.Info().Str("remote_path", remotePath).Msg("removing remote backup")
	return c.fs.Remove(remotePath)
}

// Close releases the transfer channel.
func (c *channel) Close() error {
	return c.fs.Close()
}

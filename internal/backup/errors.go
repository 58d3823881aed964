// Package backup defines the error taxonomy and run stages shared by the
// backup services.
package backup

import (
	"fmt"
	"strings"
)

// ConfigurationError indicates a missing or invalid setting, or key
// material that cannot be used. It is raised before any network activity.
type ConfigurationError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s %s", e.Key, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ConnectionError indicates that the SSH transport could not be
// established, for transport or authentication reasons.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandError indicates that the remote dump utility exited nonzero.
// Stderr carries the captured error text from the remote side.
type CommandError struct {
	ExitStatus int
	Stderr     string
}

func (e *CommandError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("dump command exited with status %d", e.ExitStatus)
	}
	return fmt.Sprintf("dump command exited with status %d: %s", e.ExitStatus, stderr)
}

// TransferChannelError indicates that the file transfer channel could not
// be opened on an established connection.
type TransferChannelError struct {
	Err error
}

func (e *TransferChannelError) Error() string {
	return fmt.Sprintf("failed to open transfer channel: %v", e.Err)
}

func (e *TransferChannelError) Unwrap() error { return e.Err }

// TransferError indicates that downloading the artifact failed.
type TransferError struct {
	RemotePath string
	LocalPath  string
	Err        error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("failed to transfer %s to %s: %v", e.RemotePath, e.LocalPath, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// RemoteCleanupError indicates that the remote copy could not be removed
// after a successful download. The local artifact is kept.
type RemoteCleanupError struct {
	RemotePath string
	Err        error
}

func (e *RemoteCleanupError) Error() string {
	return fmt.Sprintf("failed to remove remote backup %s: %v", e.RemotePath, e.Err)
}

func (e *RemoteCleanupError) Unwrap() error { return e.Err }

// Package models contains the data structures used throughout mysql-remote-backup.
package models

import "time"

// BackupConfig holds the complete configuration for a backup run. It is
// built once at startup and passed by value into the runner; no component
// reads ambient configuration directly.
type BackupConfig struct {
	SSH      SSHConfig
	Database DatabaseConfig

	RemoteDir    string // directory on the remote host where the dump is staged
	LocalDir     string // local directory receiving the downloaded artifact
	RemoveRemote bool   // delete the remote copy after a successful download

	CommandTimeout  time.Duration // deadline for the remote dump, 0 means none
	TransferTimeout time.Duration // deadline for the download, 0 means none

	CredentialsFile    string // optional age-encrypted credentials file
	CredentialsKeyPath string // identity file used to decrypt CredentialsFile

	Telegram *TelegramConfig // optional, nil disables notifications
}

// SSHConfig holds the remote session settings.
type SSHConfig struct {
	Host           string
	Port           int
	User           string
	KeyPath        string        // path to the private key file
	KeyPassphrase  string        // empty for unencrypted keys
	HostKeyPolicy  string        // "auto-add" (default) or "known-hosts"
	KnownHostsFile string        // known_hosts path for the strict policy
	ConnectTimeout time.Duration // dial deadline, 0 means none
}

// DatabaseConfig holds the settings for the database being dumped.
type DatabaseConfig struct {
	Host     string // database host as seen from the remote machine
	Port     int
	Name     string
	User     string
	Password string // inlined into the dump command when set
}

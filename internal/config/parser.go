// Package config resolves backup configuration from environment variables
// and optional dotenv-style files.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fgeck/mysql-remote-backup/internal/backup"
	"github.com/fgeck/mysql-remote-backup/internal/credentials"
	"github.com/fgeck/mysql-remote-backup/internal/models"
	"github.com/spf13/viper"
)

// Parser resolves configuration from the process environment and an
// optional env file. Values already present in the environment win over
// file values.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser with defaults applied.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SSH_PORT", 22)
	v.SetDefault("SSH_HOST_KEY_POLICY", "auto-add")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 3306)
	v.SetDefault("REMOTE_BACKUP_DIR", "/tmp")
	v.SetDefault("LOCAL_BACKUP_DIR", "./backups")
	v.SetDefault("REMOVE_REMOTE_BACKUP", true)

	return &Parser{v: v}
}

// Load resolves configuration from the environment only.
func (p *Parser) Load() (*models.BackupConfig, error) {
	return p.parse()
}

// LoadFile additionally reads an env file. Environment variables still win
// over values from the file.
func (p *Parser) LoadFile(path string) (*models.BackupConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	return p.parse()
}

// LoadReader resolves configuration from env-file content (useful for testing).
func (p *Parser) LoadReader(content string) (*models.BackupConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) parse() (*models.BackupConfig, error) {
	cfg := &models.BackupConfig{
		SSH: models.SSHConfig{
			Host:           p.v.GetString("SSH_HOST"),
			Port:           p.v.GetInt("SSH_PORT"),
			User:           p.v.GetString("SSH_USER"),
			KeyPath:        p.v.GetString("SSH_KEY_PATH"),
			KeyPassphrase:  p.v.GetString("SSH_KEY_PASSPHRASE"),
			HostKeyPolicy:  p.v.GetString("SSH_HOST_KEY_POLICY"),
			KnownHostsFile: p.v.GetString("SSH_KNOWN_HOSTS_FILE"),
			ConnectTimeout: p.v.GetDuration("SSH_CONNECT_TIMEOUT"),
		},
		Database: models.DatabaseConfig{
			Host:     p.v.GetString("DB_HOST"),
			Port:     p.v.GetInt("DB_PORT"),
			Name:     p.v.GetString("DB_NAME"),
			User:     p.v.GetString("DB_USER"),
			Password: p.v.GetString("DB_PASSWORD"),
		},
		RemoteDir:          p.v.GetString("REMOTE_BACKUP_DIR"),
		LocalDir:           p.v.GetString("LOCAL_BACKUP_DIR"),
		RemoveRemote:       p.v.GetBool("REMOVE_REMOTE_BACKUP"),
		CommandTimeout:     p.v.GetDuration("COMMAND_TIMEOUT"),
		TransferTimeout:    p.v.GetDuration("TRANSFER_TIMEOUT"),
		CredentialsFile:    p.v.GetString("CREDENTIALS_FILE"),
		CredentialsKeyPath: p.v.GetString("CREDENTIALS_KEY_PATH"),
	}

	if cfg.SSH.Host == "" {
		return nil, &backup.ConfigurationError{Key: "SSH_HOST", Reason: "is required"}
	}
	if cfg.SSH.User == "" {
		return nil, &backup.ConfigurationError{Key: "SSH_USER", Reason: "is required"}
	}
	if cfg.SSH.KeyPath == "" {
		return nil, &backup.ConfigurationError{Key: "SSH_KEY_PATH", Reason: "is required"}
	}
	if cfg.Database.Name == "" {
		return nil, &backup.ConfigurationError{Key: "DB_NAME", Reason: "is required"}
	}
	if cfg.Database.User == "" {
		return nil, &backup.ConfigurationError{Key: "DB_USER", Reason: "is required"}
	}

	if cfg.CredentialsFile != "" {
		if err := p.mergeCredentials(cfg); err != nil {
			return nil, err
		}
	}

	telegram, err := p.parseTelegram()
	if err != nil {
		return nil, err
	}
	cfg.Telegram = telegram

	return cfg, nil
}

// parseTelegram returns nil when neither Telegram key is set. Setting only
// one of the pair is a configuration error.
func (p *Parser) parseTelegram() (*models.TelegramConfig, error) {
	botToken := p.v.GetString("TELEGRAM_BOT_TOKEN")
	chatID := p.v.GetString("TELEGRAM_CHAT_ID")

	if botToken == "" && chatID == "" {
		return nil, nil
	}
	if botToken == "" {
		return nil, &backup.ConfigurationError{
			Key:    "TELEGRAM_BOT_TOKEN",
			Reason: "is required when TELEGRAM_CHAT_ID is set",
		}
	}
	if chatID == "" {
		return nil, &backup.ConfigurationError{
			Key:    "TELEGRAM_CHAT_ID",
			Reason: "is required when TELEGRAM_BOT_TOKEN is set",
		}
	}

	return &models.TelegramConfig{BotToken: botToken, ChatID: chatID}, nil
}

// mergeCredentials fills secrets from the encrypted credentials file.
// Values already set through the environment are not overwritten.
func (p *Parser) mergeCredentials(cfg *models.BackupConfig) error {
	if cfg.CredentialsKeyPath == "" {
		return &backup.ConfigurationError{
			Key:    "CREDENTIALS_KEY_PATH",
			Reason: "is required when CREDENTIALS_FILE is set",
		}
	}

	mgr, err := credentials.NewManager(cfg.CredentialsFile, cfg.CredentialsKeyPath)
	if err != nil {
		return &backup.ConfigurationError{Key: "CREDENTIALS_KEY_PATH", Reason: "is not usable", Err: err}
	}

	creds, err := mgr.Load()
	if err != nil {
		return &backup.ConfigurationError{Key: "CREDENTIALS_FILE", Reason: "cannot be decrypted", Err: err}
	}

	if cfg.Database.Password == "" {
		cfg.Database.Password = creds.DBPassword
	}
	if cfg.SSH.KeyPassphrase == "" {
		cfg.SSH.KeyPassphrase = creds.SSHKeyPassphrase
	}

	return nil
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.BackupConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.SSH.Host == "" {
		return &backup.ConfigurationError{Key: "SSH_HOST", Reason: "is required"}
	}
	if cfg.SSH.User == "" {
		return &backup.ConfigurationError{Key: "SSH_USER", Reason: "is required"}
	}
	if cfg.SSH.KeyPath == "" {
		return &backup.ConfigurationError{Key: "SSH_KEY_PATH", Reason: "is required"}
	}
	if cfg.Database.Name == "" {
		return &backup.ConfigurationError{Key: "DB_NAME", Reason: "is required"}
	}
	if cfg.Database.User == "" {
		return &backup.ConfigurationError{Key: "DB_USER", Reason: "is required"}
	}

	if _, err := os.Stat(cfg.SSH.KeyPath); err != nil {
		return &backup.ConfigurationError{Key: "SSH_KEY_PATH", Reason: "private key not found", Err: err}
	}

	if cfg.SSH.Port < 1 || cfg.SSH.Port > 65535 {
		return &backup.ConfigurationError{Key: "SSH_PORT", Reason: "must be between 1 and 65535"}
	}
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return &backup.ConfigurationError{Key: "DB_PORT", Reason: "must be between 1 and 65535"}
	}

	// An empty policy falls back to auto-add at connect time.
	validPolicies := map[string]bool{"auto-add": true, "known-hosts": true}
	if cfg.SSH.HostKeyPolicy != "" && !validPolicies[cfg.SSH.HostKeyPolicy] {
		return &backup.ConfigurationError{Key: "SSH_HOST_KEY_POLICY", Reason: "must be one of: auto-add, known-hosts"}
	}

	return nil
}

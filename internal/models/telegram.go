package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for a backup notification.
type TelegramMessage struct {
	Success   bool
	Host      string
	Database  string
	StartTime time.Time
	Duration  time.Duration

	// Artifact info (if successful).
	LocalPath     string
	SizeBytes     int64
	RemoteRemoved bool

	// Error info (if failed).
	Stage        string
	ErrorMessage string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}

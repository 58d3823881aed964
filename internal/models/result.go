package models

import "time"

// CommandResult holds the outcome of one remote command.
type CommandResult struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

// DumpResult holds the result of a remote dump operation.
type DumpResult struct {
	Artifact Artifact
	Duration time.Duration
	Error    error
}

// TransferResult holds the result of a download.
type TransferResult struct {
	RemotePath string
	LocalPath  string
	SizeBytes  int64
	Duration   time.Duration
	Error      error
}

// Report summarizes a completed backup run.
type Report struct {
	Artifact      Artifact
	SizeBytes     int64
	RemoteRemoved bool
	Duration      time.Duration
}

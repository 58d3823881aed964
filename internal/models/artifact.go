package models

import "time"

// Artifact describes one timestamped dump file and where it lives. The
// filename is unique per database at second granularity; runs within the
// same second reuse the same remote path.
type Artifact struct {
	Filename   string
	RemotePath string
	LocalPath  string
	CreatedAt  time.Time
}

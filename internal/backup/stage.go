package backup

// Stage marks how far a backup run has progressed. A run moves through the
// stages strictly in order; any failure terminates the run at the stage it
// last reached.
type Stage string

const (
	StageInit          Stage = "init"
	StageConfigured    Stage = "configured"
	StageConnected     Stage = "connected"
	StageDumpExecuted  Stage = "dump_executed"
	StageDownloaded    Stage = "downloaded"
	StageRemoteCleaned Stage = "remote_cleaned"
	StageReported      Stage = "reported"
)

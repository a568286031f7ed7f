package context

// Install outcomes reported to a Recorder.
const (
	InstallInstalled    = "installed"
	InstallStale        = "stale"
	InstallNoThread     = "no_thread"
	InstallUnrecognized = "unrecognized"
	InstallFailed       = "failed"
)

// Transaction cleanup outcomes reported to a Recorder.
const (
	TxCleanupNone     = "none"
	TxCleanupCommit   = "commit"
	TxCleanupRollback = "rollback"
	TxCleanupLeft     = "left"
	TxCleanupFailed   = "failed"
)

// Recorder observes protocol events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Captured()
	Installed(outcome string)
	Restored()
	TxCleanup(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Captured()        {}
func (nopRecorder) Installed(string) {}
func (nopRecorder) Restored()        {}
func (nopRecorder) TxCleanup(string) {}

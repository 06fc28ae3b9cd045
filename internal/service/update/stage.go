package update

import "time"

// Stage identifies a step of the update state machine. Failure reports
// carry the stage that was executing when the run went wrong.
type Stage int

const (
	// StageIdle is the state before the run begins.
	StageIdle Stage = iota
	// StageServiceStopping halts the managed service.
	StageServiceStopping
	// StagePayloadClearing removes the stale payload tree.
	StagePayloadClearing
	// StagePayloadFetching resolves the latest build and downloads its archive.
	StagePayloadFetching
	// StagePayloadExtracting unpacks the archive into the install target.
	StagePayloadExtracting
	// StagePermissionFixing sets ownership of the new payload tree.
	StagePermissionFixing
	// StageServiceStarting brings the managed service back up.
	StageServiceStarting
	// StageDone is the terminal state of a successful run.
	StageDone
	// StageRecovering is the best-effort restart path after a failure
	// inside the fetch/extract window.
	StageRecovering
	// StageFailed is the terminal state of a failed run.
	StageFailed
)

// String returns the stage name used in logs and failure reports.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "Idle"
	case StageServiceStopping:
		return "ServiceStopping"
	case StagePayloadClearing:
		return "PayloadClearing"
	case StagePayloadFetching:
		return "PayloadFetching"
	case StagePayloadExtracting:
		return "PayloadExtracting"
	case StagePermissionFixing:
		return "PermissionFixing"
	case StageServiceStarting:
		return "ServiceStarting"
	case StageDone:
		return "Done"
	case StageRecovering:
		return "Recovering"
	case StageFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Outcome is the single result record produced by an update run.
type Outcome struct {
	// Success reports whether the run reached Done.
	Success bool
	// Duration is wall-clock time from entering ServiceStopping until the
	// terminal state.
	Duration time.Duration
	// Terminal is the state the run ended in: StageDone or StageFailed.
	Terminal Stage
	// FailedStage is the stage executing when the run failed; StageIdle on success.
	FailedStage Stage
	// Err is the original failure, nil on success.
	Err error
	// RecoveryErr is the error of the best-effort service restart during
	// recovery, nil when recovery succeeded or never ran.
	RecoveryErr error
	// Recovered reports whether a recovery restart was attempted and succeeded.
	Recovered bool
}

package importer

// State is the lifecycle state of a Manager.
type State int

const (
	// StateIdle means the import has not been started yet.
	StateIdle State = iota

	// StateRunning means the loop is processing tracks.
	StateRunning

	// StatePausedManual means the user paused; only an explicit Run
	// resumes.
	StatePausedManual

	// StatePausedNoConnection means the network went away; the loop
	// resumes by itself when connectivity returns.
	StatePausedNoConnection

	// StatePausedOnError means a halting error (auth token, storefront,
	// playlist creation, store inconsistency) stopped the loop; requires an
	// explicit Run after the user confirms.
	StatePausedOnError

	// StateFinished means every playlist in the collection is fully
	// processed.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePausedManual:
		return "paused"
	case StatePausedNoConnection:
		return "paused_no_connection"
	case StatePausedOnError:
		return "paused_on_error"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

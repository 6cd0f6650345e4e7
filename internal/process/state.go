package process

import "time"

// State is where an id is in its lifecycle within one pool.
type State string

// Process states.
const (
	StateUnknown   State = "unknown"   // Never submitted
	StatePending   State = "pending"   // Queued, waiting for a free slot
	StateRunning   State = "running"   // Launched, not yet reaped
	StateFailed    State = "failed"    // Could not be launched
	StateDone      State = "done"      // Reaped and reported
	StateDetached  State = "detached"  // Launched fire-and-forget, never observed
	StateAbandoned State = "abandoned" // Killed or dropped at pool teardown, output discarded
)

// Info contains information about one id in a pool.
type Info struct {
	ID         string
	State      State
	PID        int
	StartedAt  time.Time
	FinishedAt time.Time
	ExitCode   int
}

package process

import (
	"log/slog"
	"time"

	"github.com/smazurov/multirunner/internal/events"
)

// DefaultPollInterval is the pause between drain passes that made no progress.
const DefaultPollInterval = 2 * time.Millisecond

// StateChangeCallback is called when a process state changes.
// Used for reactions outside the pool (e.g., progress output, tests).
type StateChangeCallback func(id string, oldState, newState State, err error)

// PoolOptions configures a new Pool.
type PoolOptions struct {
	// Name labels metrics and events. Defaults to "default".
	Name string

	// MaxParallel is the number of processes allowed to run at once (required, >= 1).
	MaxParallel int

	// Spawner starts processes. If nil, uses OSSpawner.
	Spawner Spawner

	// TempDir holds the stderr capture files. If empty, uses os.TempDir().
	TempDir string

	// PollInterval is the idle pause between drain passes. If zero, uses DefaultPollInterval.
	PollInterval time.Duration

	// OnStateChange is called when process state transitions (optional).
	OnStateChange StateChangeCallback

	// Events receives process lifecycle events (optional).
	Events *events.Bus

	// Logger for pool operations. If nil, uses slog.Default().
	Logger *slog.Logger
}

package events

// Event type constants for kelindar/event.
const (
	TypeProcessStarted uint32 = iota + 1
	TypeProcessFinished
	TypeProcessAbandoned
	TypePoolTimeout
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ProcessStartedEvent is published when a pool admits and launches a process.
type ProcessStartedEvent struct {
	Pool      string `json:"pool"`
	ProcessID string `json:"process_id"`
	PID       int    `json:"pid"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ProcessStartedEvent.
func (e ProcessStartedEvent) Type() uint32 { return TypeProcessStarted }

// ProcessFinishedEvent is published when a process is reaped with a result.
type ProcessFinishedEvent struct {
	Pool       string `json:"pool"`
	ProcessID  string `json:"process_id"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for ProcessFinishedEvent.
func (e ProcessFinishedEvent) Type() uint32 { return TypeProcessFinished }

// ProcessAbandonedEvent is published when a running process is killed at pool close.
type ProcessAbandonedEvent struct {
	Pool      string `json:"pool"`
	ProcessID string `json:"process_id"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ProcessAbandonedEvent.
func (e ProcessAbandonedEvent) Type() uint32 { return TypeProcessAbandoned }

// PoolTimeoutEvent is published when a wait call runs past its deadline.
type PoolTimeoutEvent struct {
	Pool      string `json:"pool"`
	Pending   int    `json:"pending"`
	Running   int    `json:"running"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for PoolTimeoutEvent.
func (e PoolTimeoutEvent) Type() uint32 { return TypePoolTimeout }

package process

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/multirunner/internal/events"
	"github.com/smazurov/multirunner/internal/metrics"
)

// Pool runs submitted LaunchSpecs with at most MaxParallel running at once.
// A Pool has one owner: the wait calls must not run concurrently. Status,
// Pending and Running may be called from any goroutine.
type Pool struct {
	name          string
	maxParallel   int
	spawner       Spawner
	tempDir       string
	pollInterval  time.Duration
	onStateChange StateChangeCallback
	events        *events.Bus
	logger        *slog.Logger

	mu      sync.Mutex
	pending []LaunchSpec
	running []*Handle
	status  map[string]*Info
	closed  bool
}

// NewPool creates a new process pool.
func NewPool(opts PoolOptions) (*Pool, error) {
	if opts.MaxParallel < 1 {
		return nil, NewError(ErrCodeInvalidArgument,
			fmt.Sprintf("max parallel must be at least 1, got %d", opts.MaxParallel), nil)
	}

	p := &Pool{
		name:          opts.Name,
		maxParallel:   opts.MaxParallel,
		spawner:       opts.Spawner,
		tempDir:       opts.TempDir,
		pollInterval:  opts.PollInterval,
		onStateChange: opts.OnStateChange,
		events:        opts.Events,
		logger:        opts.Logger,
		status:        make(map[string]*Info),
	}
	if p.name == "" {
		p.name = "default"
	}
	if p.spawner == nil {
		p.spawner = OSSpawner{}
	}
	if p.tempDir == "" {
		p.tempDir = os.TempDir()
	}
	if p.pollInterval <= 0 {
		p.pollInterval = DefaultPollInterval
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("pool", p.name)
	return p, nil
}

// Name returns the pool's metrics and events label.
func (p *Pool) Name() string { return p.name }

// Submit queues spec behind the already pending ones. Nothing is started
// until one of the wait calls runs.
func (p *Pool) Submit(spec LaunchSpec) error {
	switch {
	case spec.ID == "":
		return NewError(ErrCodeInvalidArgument, "process id is empty", nil)
	case spec.CommandLine == "":
		return NewError(ErrCodeInvalidArgument, "command line is empty for "+spec.ID, nil)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return NewError(ErrCodeClosed, "submit "+spec.ID, nil)
	}
	if info, ok := p.status[spec.ID]; ok {
		p.mu.Unlock()
		return NewError(ErrCodeDuplicateID,
			fmt.Sprintf("process %s already submitted (%s)", spec.ID, info.State), nil)
	}
	p.pending = append(p.pending, spec.clone())
	p.status[spec.ID] = &Info{ID: spec.ID, State: StatePending, ExitCode: -1}
	p.mu.Unlock()

	p.notifyStateChange(spec.ID, StateUnknown, StatePending, nil)
	return nil
}

// WaitAll runs every pending process and waits until all running ones have
// exited. If the budget runs out, or ctx is done, it fails with a
// TIMEOUT_EXCEEDED error and no results; processes already started keep
// running until Close.
func (p *Pool) WaitAll(ctx context.Context, budget time.Duration) (Results, error) {
	return p.run(ctx, budget, 0)
}

// WaitFirst is WaitAll that returns as soon as at least k results are in.
// Results are counted after each drain pass, so more than k may be returned.
// Processes still pending or running are left for Close. If fewer than k
// processes exist, it returns once all of them have finished.
func (p *Pool) WaitFirst(ctx context.Context, budget time.Duration, k int) (Results, error) {
	if k <= 0 {
		return nil, NewError(ErrCodeInvalidArgument, fmt.Sprintf("k must be at least 1, got %d", k), nil)
	}
	return p.run(ctx, budget, k)
}

// FireAndForget starts every pending process without collecting results.
// When all pending specs use the inherited directory and environment and
// fit in the free slots at once, they are started detached and never
// observed again. Otherwise it behaves like WaitAll and discards the results.
func (p *Pool) FireAndForget(ctx context.Context, budget time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return NewError(ErrCodeClosed, "fire and forget", nil)
	}
	detach := len(p.pending) <= p.maxParallel && !slices.ContainsFunc(p.pending, func(s LaunchSpec) bool {
		return !s.plain()
	})
	p.mu.Unlock()

	if !detach {
		_, err := p.run(ctx, budget, 0)
		return err
	}

	for {
		spec, ok := p.popPending()
		if !ok {
			return nil
		}
		if err := p.spawner.Detach(spec); err != nil {
			return p.launchFailed(spec, err)
		}
		metrics.ProcessDetached(p.name)
		p.setState(spec.ID, StateDetached, func(info *Info) { info.StartedAt = time.Now() })
		p.logger.Debug("Process detached", "id", spec.ID)
	}
}

// Close kills and reaps every running process, removes their capture files
// and drops the pending queue. It is safe to call more than once and always
// returns nil; failures are logged.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	running := p.running
	pending := p.pending
	p.running = nil
	p.pending = nil
	p.mu.Unlock()

	for _, h := range running {
		if err := h.abandon(); err != nil {
			p.logger.Warn("Failed to release abandoned process", "id", h.id, "error", err)
		}
		metrics.ProcessAbandoned(p.name)
		p.publish(events.ProcessAbandonedEvent{
			Pool:      p.name,
			ProcessID: h.id,
			Timestamp: time.Now().Format(time.RFC3339),
		})
		p.setState(h.id, StateAbandoned, func(info *Info) { info.FinishedAt = time.Now() })
	}
	for _, spec := range pending {
		p.setState(spec.ID, StateAbandoned, nil)
	}

	if len(running) > 0 || len(pending) > 0 {
		p.logger.Debug("Pool closed", "abandoned", len(running), "dropped", len(pending))
	}
	return nil
}

// Status returns process info. Returns the unknown state if the id was never submitted.
func (p *Pool) Status(id string) *Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, ok := p.status[id]
	if !ok {
		return &Info{ID: id, State: StateUnknown, ExitCode: -1}
	}
	dup := *info
	return &dup
}

// Pending returns the number of queued specs.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Running returns the number of launched, not yet reaped processes.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}

// run alternates admission and drain passes until the queues are empty or,
// when k > 0, at least k results are in.
func (p *Pool) run(ctx context.Context, budget time.Duration, k int) (Results, error) {
	deadline := time.Now().Add(budget)

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, NewError(ErrCodeClosed, "wait", nil)
	}

	results := make(Results)
	for {
		pending, running := p.Pending(), p.Running()
		switch {
		case pending > 0:
			if err := p.admit(ctx, deadline); err != nil {
				return nil, err
			}
		case running == 0:
			return results, nil
		default:
			if err := p.checkDeadline(ctx, deadline); err != nil {
				return nil, err
			}
		}

		progress, err := p.drainPass(ctx, deadline, results)
		if err != nil {
			return nil, err
		}
		if k > 0 && len(results) >= k {
			return results, nil
		}
		if !progress {
			p.idle(ctx, deadline)
		}
	}
}

// admit launches pending specs in submission order while slots are free.
func (p *Pool) admit(ctx context.Context, deadline time.Time) error {
	for {
		if err := p.checkDeadline(ctx, deadline); err != nil {
			return err
		}

		p.mu.Lock()
		if len(p.pending) == 0 || len(p.running) >= p.maxParallel {
			p.mu.Unlock()
			return nil
		}
		spec := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()

		h, err := launch(p.spawner, spec, p.tempDir)
		if err != nil {
			return p.launchFailed(spec, err)
		}

		p.mu.Lock()
		p.running = append(p.running, h)
		p.mu.Unlock()

		metrics.ProcessLaunched(p.name)
		p.publish(events.ProcessStartedEvent{
			Pool:      p.name,
			ProcessID: h.id,
			PID:       h.Pid(),
			Timestamp: h.startedAt.Format(time.RFC3339),
		})
		p.setState(h.id, StateRunning, func(info *Info) {
			info.PID = h.Pid()
			info.StartedAt = h.startedAt
		})
		p.logger.Debug("Process started", "id", h.id, "pid", h.Pid())
	}
}

// drainPass reads available output from every running process and
// finalizes the ones that have exited. Output is always read before the
// liveness query. It reports whether anything was read or reaped.
func (p *Pool) drainPass(ctx context.Context, deadline time.Time, results Results) (bool, error) {
	p.mu.Lock()
	running := slices.Clone(p.running)
	p.mu.Unlock()

	progress := false
	for _, h := range running {
		if err := p.checkDeadline(ctx, deadline); err != nil {
			return progress, err
		}

		n, err := h.drain()
		if err != nil {
			p.logger.Warn("Failed to read process output", "id", h.id, "error", err)
		}
		if n > 0 {
			progress = true
		}

		exited, exitCode := h.child.Exited()
		if !exited {
			continue
		}

		p.mu.Lock()
		p.running = slices.DeleteFunc(p.running, func(r *Handle) bool { return r == h })
		p.mu.Unlock()

		res, err := h.finalize(exitCode)
		if err != nil {
			p.logger.Warn("Failed to finalize process", "id", h.id, "error", err)
		}
		results.add(h.id, res)
		p.completed(h, res)
		progress = true
	}
	return progress, nil
}

func (p *Pool) completed(h *Handle, res Result) {
	now := time.Now()
	elapsed := now.Sub(h.startedAt)

	metrics.ProcessCompleted(p.name, elapsed)
	p.publish(events.ProcessFinishedEvent{
		Pool:       p.name,
		ProcessID:  h.id,
		ExitCode:   res.ExitCode,
		DurationMS: elapsed.Milliseconds(),
		Timestamp:  now.Format(time.RFC3339),
	})
	p.setState(h.id, StateDone, func(info *Info) {
		info.FinishedAt = now
		info.ExitCode = res.ExitCode
	})
	p.logger.Debug("Process finished", "id", h.id, "exit_code", res.ExitCode, "duration", elapsed)
}

func (p *Pool) launchFailed(spec LaunchSpec, cause error) error {
	metrics.LaunchFailed(p.name)
	err := NewError(ErrCodeLaunch, "starting "+spec.CommandLine, cause)
	p.setStateErr(spec.ID, StateFailed, err)
	p.logger.Error("Failed to start process", "id", spec.ID, "error", cause)
	return err
}

// checkDeadline fails once the deadline has been reached or ctx is done.
func (p *Pool) checkDeadline(ctx context.Context, deadline time.Time) error {
	var cause error
	switch {
	case ctx.Err() != nil:
		cause = ctx.Err()
	case !time.Now().Before(deadline):
		cause = context.DeadlineExceeded
	default:
		return nil
	}

	pending, running := p.Pending(), p.Running()
	metrics.TimedOut(p.name)
	p.publish(events.PoolTimeoutEvent{
		Pool:      p.name,
		Pending:   pending,
		Running:   running,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	p.logger.Warn("Wait deadline exceeded", "pending", pending, "running", running, "cause", cause)
	return NewError(ErrCodeTimeout,
		fmt.Sprintf("deadline %s passed with %d pending and %d running", deadline.Format(time.RFC3339Nano), pending, running),
		cause)
}

// idle pauses for one poll interval, or less if the deadline or ctx comes first.
func (p *Pool) idle(ctx context.Context, deadline time.Time) {
	wait := min(p.pollInterval, time.Until(deadline))
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (p *Pool) popPending() (LaunchSpec, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return LaunchSpec{}, false
	}
	spec := p.pending[0]
	p.pending = p.pending[1:]
	return spec, true
}

func (p *Pool) setState(id string, state State, update func(*Info)) {
	p.transition(id, state, nil, update)
}

func (p *Pool) setStateErr(id string, state State, err error) {
	p.transition(id, state, err, nil)
}

func (p *Pool) transition(id string, state State, err error, update func(*Info)) {
	p.mu.Lock()
	info, ok := p.status[id]
	if !ok {
		info = &Info{ID: id, State: StateUnknown, ExitCode: -1}
		p.status[id] = info
	}
	old := info.State
	info.State = state
	if update != nil {
		update(info)
	}
	p.mu.Unlock()

	p.notifyStateChange(id, old, state, err)
}

// notifyStateChange invokes the OnStateChange callback if configured.
func (p *Pool) notifyStateChange(id string, oldState, newState State, err error) {
	if p.onStateChange != nil {
		p.onStateChange(id, oldState, newState, err)
	}
}

func (p *Pool) publish(ev events.Event) {
	if p.events != nil {
		p.events.Publish(ev)
	}
}

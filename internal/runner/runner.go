// Package runner builds launch specs for common kinds of targets and runs
// them on a process pool.
//
//   - Program runs one program with per-call arguments.
//   - Script runs one script file through an interpreter.
//   - Code writes a code snippet to a scratch directory and runs it.
//   - Diff runs a different program, script or snippet per call.
//
// Programs and interpreters are resolved when the runner is created (or, for
// Diff, when a process is added), so a missing executable fails before
// anything is submitted.
package runner

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/smazurov/multirunner/internal/escape"
	"github.com/smazurov/multirunner/internal/events"
	"github.com/smazurov/multirunner/internal/process"
	"github.com/smazurov/multirunner/internal/system"
)

// Runner runs the processes added to it.
type Runner interface {
	// WaitAll runs every added process and returns all results.
	WaitAll(ctx context.Context, budget time.Duration) (process.Results, error)

	// WaitFirst returns once at least k processes have finished.
	WaitFirst(ctx context.Context, budget time.Duration, k int) (process.Results, error)

	// FireAndForget starts every added process without collecting results.
	FireAndForget(ctx context.Context, budget time.Duration) error

	// Close kills unfinished processes and removes scratch files.
	Close() error
}

var (
	_ Runner = (*Program)(nil)
	_ Runner = (*Script)(nil)
	_ Runner = (*Code)(nil)
	_ Runner = (*Diff)(nil)
)

// Options are shared by all runners.
type Options struct {
	// System is the OS capability. If nil, uses system.OS().
	System *system.System

	// Name labels metrics and events of the underlying pool.
	Name string

	// PollInterval overrides the pool's idle pause.
	PollInterval time.Duration

	// OnStateChange is passed to the pool (optional).
	OnStateChange process.StateChangeCallback

	// Events receives process lifecycle events (optional).
	Events *events.Bus

	// Logger for runner operations. If nil, uses slog.Default().
	Logger *slog.Logger
}

// base owns the pool, the escaping policy and an optional scratch directory.
type base struct {
	pool    *process.Pool
	sys     *system.System
	policy  escape.Policy
	logger  *slog.Logger
	scratch string
}

func newBase(maxParallel int, opts Options) (*base, error) {
	sys := opts.System
	if sys == nil {
		sys = system.OS()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := process.NewPool(process.PoolOptions{
		Name:          opts.Name,
		MaxParallel:   maxParallel,
		Spawner:       sys.Spawner,
		PollInterval:  opts.PollInterval,
		OnStateChange: opts.OnStateChange,
		Events:        opts.Events,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	return &base{
		pool:   pool,
		sys:    sys,
		policy: sys.Policy(),
		logger: logger,
	}, nil
}

// Pool returns the underlying pool, for status queries.
func (b *base) Pool() *process.Pool { return b.pool }

// WaitAll implements Runner.
func (b *base) WaitAll(ctx context.Context, budget time.Duration) (process.Results, error) {
	return b.pool.WaitAll(ctx, budget)
}

// WaitFirst implements Runner.
func (b *base) WaitFirst(ctx context.Context, budget time.Duration, k int) (process.Results, error) {
	return b.pool.WaitFirst(ctx, budget, k)
}

// FireAndForget implements Runner.
func (b *base) FireAndForget(ctx context.Context, budget time.Duration) error {
	return b.pool.FireAndForget(ctx, budget)
}

// Close implements Runner. It always returns nil; cleanup failures are logged.
func (b *base) Close() error {
	_ = b.pool.Close()
	if b.scratch != "" {
		if err := b.sys.RemoveDirRecursive(b.scratch); err != nil {
			b.logger.Warn("Failed to remove scratch directory", "dir", b.scratch, "error", err)
		}
		b.scratch = ""
	}
	return nil
}

// submit escapes the command and queues it.
func (b *base) submit(id, program string, programArgs []string, script string, scriptArgs []string, dir string, env map[string]string) error {
	commandLine, err := escape.CommandLine(b.policy, program, programArgs, script, scriptArgs)
	if err != nil {
		return NewError(ErrCodeEscape, "building command line for "+id, err)
	}
	if err := b.pool.Submit(process.LaunchSpec{
		ID:          id,
		CommandLine: commandLine,
		Dir:         dir,
		Env:         env,
	}); err != nil {
		return err
	}
	b.logger.Debug("Process queued", "id", id, "command", commandLine)
	return nil
}

// resolveDir makes dir absolute and checks that it exists. Empty stays empty.
func (b *base) resolveDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil || !b.sys.DirExists(abs) {
		return "", NewError(ErrCodeDirNotFound, "the directory "+dir+" not found", err)
	}
	return abs, nil
}

// resolveProgram returns the name under which program can be launched:
// as given when it exists or is on PATH, else relative to dir.
func (b *base) resolveProgram(program, dir string, code ErrorCode) (string, error) {
	if b.sys.ProgramExists(program) {
		return program, nil
	}
	if dir != "" {
		if inDir := filepath.Join(dir, program); b.sys.ProgramExists(inDir) {
			return inDir, nil
		}
	}
	what := "the program "
	if code == ErrCodeInterpreterNotFound {
		what = "the interpreter "
	}
	return "", NewError(code, what+program+" not found", nil)
}

// ensureScratch creates the scratch directory on first use.
func (b *base) ensureScratch(baseDir string) (string, error) {
	if b.scratch != "" {
		return b.scratch, nil
	}
	dir, err := b.sys.MakeScratchDir(baseDir)
	if err != nil {
		return "", NewError(ErrCodeResourceSetup, "cannot create the scratch directory", err)
	}
	b.scratch = dir
	return dir, nil
}

func (b *base) interpreterOrDefault(interpreter string) string {
	if interpreter == "" {
		return b.sys.DefaultInterpreter()
	}
	return interpreter
}

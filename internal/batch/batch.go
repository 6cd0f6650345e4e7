// Package batch reads TOML batch files describing a set of processes and
// runs them on a runner.Diff pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/smazurov/multirunner/internal/process"
	"github.com/smazurov/multirunner/internal/runner"
)

// Strategy selects how a batch waits for its processes.
type Strategy string

// Strategies.
const (
	StrategyAll    Strategy = "all"
	StrategyFirst  Strategy = "first"
	StrategyForget Strategy = "forget"
)

// DefaultTimeout applies when a batch sets no timeout.
const DefaultTimeout = time.Minute

// Duration is a time.Duration written as a string ("30s", "1m30s") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// File is a parsed batch file.
type File struct {
	MaxParallel int      `toml:"max_parallel"`
	Timeout     Duration `toml:"timeout"`
	Strategy    Strategy `toml:"strategy"`
	// First is k for the "first" strategy.
	First int `toml:"first"`
	// BaseDir holds the scratch directory of code entries.
	BaseDir   string  `toml:"base_dir"`
	Processes []Entry `toml:"process"`

	// Path is where the file was loaded from.
	Path string `toml:"-"`
}

// Entry is one [[process]] table. Exactly one of Program, Script and Code is set.
type Entry struct {
	ID              string            `toml:"id"`
	Program         string            `toml:"program"`
	Script          string            `toml:"script"`
	Code            string            `toml:"code"`
	Interpreter     string            `toml:"interpreter"`
	InterpreterArgs []string          `toml:"interpreter_args"`
	Args            []string          `toml:"args"`
	Dir             string            `toml:"dir"`
	Env             map[string]string `toml:"env"`
}

func (e Entry) kind() string {
	switch {
	case e.Program != "":
		return "program"
	case e.Script != "":
		return "script"
	default:
		return "code"
	}
}

// Overrides are command-line values that replace batch-level settings.
// Zero values leave the file untouched.
type Overrides struct {
	MaxParallel int
	Timeout     time.Duration
	Strategy    Strategy
	First       int
}

// Load reads and parses the batch file at path. Relative script and dir
// values are resolved against the file's directory. Defaults are filled in
// but the result is not validated.
func Load(fs afero.Fs, path string) (*File, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, NewError(ErrCodeRead, path, "", err)
	}

	f := &File{}
	if err := toml.Unmarshal(data, f); err != nil {
		return nil, NewError(ErrCodeParse, path, "", err)
	}
	f.Path = path

	if f.MaxParallel == 0 {
		f.MaxParallel = 1
	}
	if f.Timeout == 0 {
		f.Timeout = Duration(DefaultTimeout)
	}
	if f.Strategy == "" {
		f.Strategy = StrategyAll
	}
	if f.Strategy == StrategyFirst && f.First == 0 {
		f.First = 1
	}

	root := filepath.Dir(path)
	for i := range f.Processes {
		p := &f.Processes[i]
		if p.Script != "" && !filepath.IsAbs(p.Script) {
			p.Script = filepath.Join(root, p.Script)
		}
		if p.Dir != "" && !filepath.IsAbs(p.Dir) {
			p.Dir = filepath.Join(root, p.Dir)
		}
	}
	if f.BaseDir != "" && !filepath.IsAbs(f.BaseDir) {
		f.BaseDir = filepath.Join(root, f.BaseDir)
	}
	return f, nil
}

// Apply replaces batch-level settings with the non-zero overrides.
func (f *File) Apply(o Overrides) {
	if o.MaxParallel != 0 {
		f.MaxParallel = o.MaxParallel
	}
	if o.Timeout != 0 {
		f.Timeout = Duration(o.Timeout)
	}
	if o.Strategy != "" {
		f.Strategy = o.Strategy
	}
	if o.First != 0 {
		f.First = o.First
	}
}

// Validate reports every problem in the file at once.
func (f *File) Validate() error {
	var errs []error

	if f.MaxParallel < 1 {
		errs = append(errs, fmt.Errorf("max_parallel must be at least 1, got %d", f.MaxParallel))
	}
	if f.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", time.Duration(f.Timeout)))
	}
	switch f.Strategy {
	case StrategyAll, StrategyForget:
	case StrategyFirst:
		if f.First < 1 {
			errs = append(errs, fmt.Errorf("first must be at least 1, got %d", f.First))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown strategy %q (want all, first or forget)", f.Strategy))
	}

	seen := make(map[string]bool, len(f.Processes))
	for i, p := range f.Processes {
		where := fmt.Sprintf("process #%d", i+1)
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("%s: id is empty", where))
		} else {
			where = fmt.Sprintf("process %q", p.ID)
			if seen[p.ID] {
				errs = append(errs, fmt.Errorf("%s: duplicate id", where))
			}
			seen[p.ID] = true
		}

		set := 0
		for _, v := range []string{p.Program, p.Script, p.Code} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			errs = append(errs, fmt.Errorf("%s: exactly one of program, script or code must be set", where))
			continue
		}
		if p.Program != "" && (p.Interpreter != "" || len(p.InterpreterArgs) > 0) {
			errs = append(errs, fmt.Errorf("%s: interpreter does not apply to a program", where))
		}
		if p.Code != "" && p.Dir != "" {
			errs = append(errs, fmt.Errorf("%s: dir does not apply to code", where))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return NewError(ErrCodeInvalid, f.Path, strings.Join(msgs, "; "), errors.Join(errs...))
}

// Build validates the file and adds every process to a new runner.Diff.
// The runner is closed again if any entry fails.
func (f *File) Build(opts runner.Options) (*runner.Diff, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	r, err := runner.NewDiff(f.MaxParallel, runner.DiffOptions{Options: opts, BaseDir: f.BaseDir})
	if err != nil {
		return nil, NewError(ErrCodeInvalid, f.Path, "", err)
	}

	for _, p := range f.Processes {
		if err := f.add(r, p); err != nil {
			_ = r.Close()
			return nil, NewError(ErrCodeEntry, f.Path, fmt.Sprintf("%s %q", p.kind(), p.ID), err)
		}
	}
	return r, nil
}

func (f *File) add(r *runner.Diff, p Entry) error {
	switch {
	case p.Program != "":
		return r.AddProgram(p.ID, runner.ProgramTarget{
			Program: p.Program,
			Args:    p.Args,
			Dir:     p.Dir,
			Env:     p.Env,
		})
	case p.Script != "":
		return r.AddScript(p.ID, runner.ScriptTarget{
			Script:          p.Script,
			Interpreter:     p.Interpreter,
			InterpreterArgs: p.InterpreterArgs,
			Dir:             p.Dir,
			Env:             p.Env,
		}, p.Args...)
	default:
		return r.AddCode(p.ID, runner.CodeTarget{
			Code:            p.Code,
			Interpreter:     p.Interpreter,
			InterpreterArgs: p.InterpreterArgs,
			Env:             p.Env,
		}, p.Args...)
	}
}

// Run waits on r according to the file's strategy. The forget strategy
// returns empty results.
func (f *File) Run(ctx context.Context, r runner.Runner) (process.Results, error) {
	budget := time.Duration(f.Timeout)
	switch f.Strategy {
	case StrategyFirst:
		return r.WaitFirst(ctx, budget, f.First)
	case StrategyForget:
		if err := r.FireAndForget(ctx, budget); err != nil {
			return nil, err
		}
		return process.Results{}, nil
	default:
		return r.WaitAll(ctx, budget)
	}
}

package runner

import (
	"path/filepath"
	"slices"

	"github.com/smazurov/multirunner/internal/escape"
)

// CodeOptions configures a Code runner.
type CodeOptions struct {
	Options

	// Interpreter runs the code. Defaults to sh, or cmd on Windows.
	Interpreter string

	// InterpreterArgs come before the script path.
	InterpreterArgs []string

	// BaseDir holds the scratch directory. Defaults to the system temp directory.
	BaseDir string

	// Env replaces the environment of every process when non-nil.
	Env map[string]string
}

// Code writes a snippet to a file in its own scratch directory and runs
// it. The scratch directory is the working directory of every process and
// is removed by Close.
type Code struct {
	*base
	script          string
	interpreter     string
	interpreterArgs []string
	env             map[string]string
}

// NewCode checks the interpreter, creates the scratch directory and writes code to it.
func NewCode(maxParallel int, code string, opts CodeOptions) (*Code, error) {
	b, err := newBase(maxParallel, opts.Options)
	if err != nil {
		return nil, err
	}
	interpreter := b.interpreterOrDefault(opts.Interpreter)
	if !b.sys.ProgramExists(interpreter) {
		_ = b.Close()
		return nil, NewError(ErrCodeInterpreterNotFound, "the interpreter "+interpreter+" not found", nil)
	}

	dir, err := b.ensureScratch(opts.BaseDir)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	script := filepath.Join(dir, "main"+escape.ScriptExtension(interpreter))
	if err := b.sys.WriteScript(script, code); err != nil {
		_ = b.Close()
		return nil, NewError(ErrCodeResourceSetup, "cannot create the main script", err)
	}

	return &Code{
		base:            b,
		script:          script,
		interpreter:     interpreter,
		interpreterArgs: slices.Clone(opts.InterpreterArgs),
		env:             opts.Env,
	}, nil
}

// Dir returns the scratch directory.
func (r *Code) Dir() string { return r.scratch }

// Add queues the snippet with args.
func (r *Code) Add(id string, args ...string) error {
	return r.submit(id, r.interpreter, r.interpreterArgs, r.script, args, r.scratch, r.env)
}

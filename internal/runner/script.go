package runner

import "slices"

// ScriptOptions configures a Script runner.
type ScriptOptions struct {
	Options

	// Interpreter runs the script. Defaults to sh, or cmd on Windows.
	Interpreter string

	// InterpreterArgs come before the script path.
	InterpreterArgs []string

	// Dir is the working directory. It must exist.
	Dir string

	// Env replaces the environment of every process when non-nil.
	Env map[string]string
}

// Script runs one script file through an interpreter.
type Script struct {
	*base
	script          string
	interpreter     string
	interpreterArgs []string
	dir             string
	env             map[string]string
}

// NewScript resolves the interpreter and creates a runner for script.
func NewScript(maxParallel int, script string, opts ScriptOptions) (*Script, error) {
	b, err := newBase(maxParallel, opts.Options)
	if err != nil {
		return nil, err
	}
	dir, err := b.resolveDir(opts.Dir)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	interpreter, err := b.resolveProgram(b.interpreterOrDefault(opts.Interpreter), dir, ErrCodeInterpreterNotFound)
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	return &Script{
		base:            b,
		script:          script,
		interpreter:     interpreter,
		interpreterArgs: slices.Clone(opts.InterpreterArgs),
		dir:             dir,
		env:             opts.Env,
	}, nil
}

// Add queues the script with args.
func (r *Script) Add(id string, args ...string) error {
	return r.submit(id, r.interpreter, r.interpreterArgs, r.script, args, r.dir, r.env)
}

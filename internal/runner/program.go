package runner

import "slices"

// ProgramOptions configures a Program runner.
type ProgramOptions struct {
	Options

	// Dir is the working directory. It must exist.
	Dir string

	// Env replaces the environment of every process when non-nil.
	Env map[string]string
}

// Program runs one program with fixed leading arguments and per-call arguments.
type Program struct {
	*base
	program     string
	programArgs []string
	dir         string
	env         map[string]string
}

// NewProgram resolves program and creates a runner for it. The program may
// be a path, a name on PATH or a path relative to opts.Dir.
func NewProgram(maxParallel int, program string, programArgs []string, opts ProgramOptions) (*Program, error) {
	b, err := newBase(maxParallel, opts.Options)
	if err != nil {
		return nil, err
	}
	dir, err := b.resolveDir(opts.Dir)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	resolved, err := b.resolveProgram(program, dir, ErrCodeProgramNotFound)
	if err != nil {
		_ = b.Close()
		return nil, err
	}

	return &Program{
		base:        b,
		program:     resolved,
		programArgs: slices.Clone(programArgs),
		dir:         dir,
		env:         opts.Env,
	}, nil
}

// Add queues the program with args appended to the fixed arguments.
func (r *Program) Add(id string, args ...string) error {
	all := append(slices.Clone(r.programArgs), args...)
	return r.submit(id, r.program, all, "", nil, r.dir, r.env)
}

package runner

import (
	"fmt"
	"path/filepath"

	"github.com/smazurov/multirunner/internal/escape"
	"github.com/smazurov/multirunner/internal/process"
)

// DiffOptions configures a Diff runner.
type DiffOptions struct {
	Options

	// BaseDir holds the scratch directory for code targets. Defaults to the
	// system temp directory.
	BaseDir string
}

// ProgramTarget is a program run by Diff.AddProgram.
type ProgramTarget struct {
	Program string
	Args    []string
	Dir     string
	Env     map[string]string
}

// ScriptTarget is a script run by Diff.AddScript.
type ScriptTarget struct {
	Script          string
	Interpreter     string
	InterpreterArgs []string
	Dir             string
	Env             map[string]string
}

// CodeTarget is a snippet run by Diff.AddCode.
type CodeTarget struct {
	Code            string
	Interpreter     string
	InterpreterArgs []string
	Env             map[string]string
}

// Diff runs a different target per process. Code targets share one scratch
// directory, created on first use and removed by Close.
type Diff struct {
	*base
	baseDir string
}

// NewDiff creates an empty Diff runner.
func NewDiff(maxParallel int, opts DiffOptions) (*Diff, error) {
	b, err := newBase(maxParallel, opts.Options)
	if err != nil {
		return nil, err
	}
	return &Diff{base: b, baseDir: opts.BaseDir}, nil
}

// AddProgram resolves target.Program and queues it with target.Args followed by args.
func (r *Diff) AddProgram(id string, target ProgramTarget, args ...string) error {
	dir, err := r.resolveDir(target.Dir)
	if err != nil {
		return err
	}
	program, err := r.resolveProgram(target.Program, dir, ErrCodeProgramNotFound)
	if err != nil {
		return err
	}
	all := append(append([]string(nil), target.Args...), args...)
	return r.submit(id, program, all, "", nil, dir, target.Env)
}

// AddScript resolves the interpreter and queues target.Script with args.
func (r *Diff) AddScript(id string, target ScriptTarget, args ...string) error {
	dir, err := r.resolveDir(target.Dir)
	if err != nil {
		return err
	}
	interpreter, err := r.resolveProgram(r.interpreterOrDefault(target.Interpreter), dir, ErrCodeInterpreterNotFound)
	if err != nil {
		return err
	}
	return r.submit(id, interpreter, target.InterpreterArgs, target.Script, args, dir, target.Env)
}

// AddCode writes target.Code to <id>_script in the scratch directory and
// queues it with args. The scratch directory is the working directory.
func (r *Diff) AddCode(id string, target CodeTarget, args ...string) error {
	interpreter := r.interpreterOrDefault(target.Interpreter)
	if !r.sys.ProgramExists(interpreter) {
		return NewError(ErrCodeInterpreterNotFound, "the interpreter "+interpreter+" not found", nil)
	}
	if id == "" || filepath.Base(id) != id {
		return process.NewError(process.ErrCodeInvalidArgument, fmt.Sprintf("process id %q cannot name a script file", id), nil)
	}
	// The script file is named after the id; do not overwrite one already queued.
	if info := r.pool.Status(id); info.State != process.StateUnknown {
		return process.NewError(process.ErrCodeDuplicateID,
			fmt.Sprintf("process %s already submitted (%s)", id, info.State), nil)
	}

	dir, err := r.ensureScratch(r.baseDir)
	if err != nil {
		return err
	}
	script := filepath.Join(dir, id+"_script"+escape.ScriptExtension(interpreter))
	if err := r.sys.WriteScript(script, target.Code); err != nil {
		return NewError(ErrCodeResourceSetup, "cannot create the script for "+id, err)
	}
	return r.submit(id, interpreter, target.InterpreterArgs, script, args, dir, target.Env)
}

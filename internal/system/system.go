// Package system is the OS capability used by the runners: platform
// detection, program lookup, scratch directories and script files.
// Everything goes through an injected filesystem and spawner so tests can
// substitute failing or in-memory implementations.
package system

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/smazurov/multirunner/internal/escape"
	"github.com/smazurov/multirunner/internal/process"
)

// System bundles the OS operations the runners depend on.
type System struct {
	// Fs holds scratch directories and script files.
	Fs afero.Fs

	// Spawner starts processes.
	Spawner process.Spawner

	// GOOS selects the escaping policy and default interpreter.
	GOOS string

	// LookPath searches PATH for a program.
	LookPath func(file string) (string, error)
}

// OS returns a System backed by the real operating system.
func OS() *System {
	return &System{
		Fs:       afero.NewOsFs(),
		Spawner:  process.OSSpawner{},
		GOOS:     runtime.GOOS,
		LookPath: exec.LookPath,
	}
}

// IsWindows reports whether the target platform is Windows.
func (s *System) IsWindows() bool {
	return s.GOOS == "windows"
}

// Policy returns the escaping policy of the target platform.
func (s *System) Policy() escape.Policy {
	return escape.ForGOOS(s.GOOS)
}

// DefaultInterpreter returns the interpreter used when none is configured.
func (s *System) DefaultInterpreter() string {
	if s.IsWindows() {
		return "cmd"
	}
	return "sh"
}

// ProgramExists reports whether program is an existing path or can be
// found on PATH.
func (s *System) ProgramExists(program string) bool {
	if program == "" {
		return false
	}
	if _, err := s.Fs.Stat(program); err == nil {
		return true
	}
	if s.LookPath == nil {
		return false
	}
	_, err := s.LookPath(program)
	return err == nil
}

// DirExists reports whether dir exists and is a directory.
func (s *System) DirExists(dir string) bool {
	ok, err := afero.DirExists(s.Fs, dir)
	return err == nil && ok
}

// MakeScratchDir creates a uniquely named directory under base and returns
// its absolute path. An empty base means the system temp directory.
func (s *System) MakeScratchDir(base string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir, err := filepath.Abs(filepath.Join(base, uuid.NewString()))
	if err != nil {
		return "", fmt.Errorf("resolving scratch directory: %w", err)
	}
	if err := s.Fs.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating scratch directory %s: %w", dir, err)
	}
	return dir, nil
}

// WriteScript writes an executable script file.
func (s *System) WriteScript(path, text string) error {
	if err := afero.WriteFile(s.Fs, path, []byte(text), 0o700); err != nil {
		return fmt.Errorf("writing script %s: %w", path, err)
	}
	return nil
}

// RemoveDirRecursive deletes dir and everything in it. A missing directory
// is not an error.
func (s *System) RemoveDirRecursive(dir string) error {
	if err := s.Fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	return nil
}

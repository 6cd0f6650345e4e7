package process

import (
	"maps"
	"slices"
)

// LaunchSpec describes one process to run.
type LaunchSpec struct {
	// ID identifies the process within one pool. Required.
	ID string

	// CommandLine is the escaped command line. Required.
	CommandLine string

	// Dir is the working directory. Empty means the caller's directory.
	Dir string

	// Env replaces the environment when non-nil. Nil inherits the parent's.
	Env map[string]string
}

// plain reports whether the spec carries no directory or environment override.
func (s LaunchSpec) plain() bool {
	return s.Dir == "" && len(s.Env) == 0
}

// clone returns a copy that does not share the Env map with the caller.
func (s LaunchSpec) clone() LaunchSpec {
	if s.Env != nil {
		s.Env = maps.Clone(s.Env)
	}
	return s
}

// envList converts an environment map to KEY=VALUE pairs in key order.
// A nil map yields nil so the child inherits the parent environment.
func envList(env map[string]string) []string {
	if env == nil {
		return nil
	}
	list := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		list = append(list, k+"="+env[k])
	}
	return list
}

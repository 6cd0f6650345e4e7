package cmd

import (
	"time"

	"github.com/smazurov/multirunner/internal/batch"
)

// Options for the CLI - flat structure with toml mapping. Field names
// match flag names (MaxParallel is --max-parallel) so flags set on the
// command line win over the file and the environment.
type Options struct {
	Config string

	// Pool settings
	MaxParallel  int           `toml:"pool.max_parallel" env:"MAX_PARALLEL"`
	Timeout      time.Duration `toml:"pool.timeout" env:"TIMEOUT"`
	PollInterval time.Duration `toml:"pool.poll_interval" env:"POLL_INTERVAL"`

	// Run settings
	Strategy string `toml:"run.strategy" env:"STRATEGY"`
	First    int    `toml:"run.first" env:"FIRST"`
	Progress bool   `toml:"run.progress" env:"PROGRESS"`
	Format   string `toml:"output.format" env:"OUTPUT_FORMAT"`

	// Metrics settings
	MetricsTextfile string `toml:"metrics.textfile" env:"METRICS_TEXTFILE"`
	MetricsListen   string `toml:"metrics.listen" env:"METRICS_LISTEN"`

	// Logging settings
	LoggingLevel  string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `toml:"logging.format" env:"LOGGING_FORMAT"`
}

// overrides returns the batch-level settings given on the command line,
// in the environment or in the config file.
func (o *Options) overrides() batch.Overrides {
	return batch.Overrides{
		MaxParallel: o.MaxParallel,
		Timeout:     o.Timeout,
		Strategy:    batch.Strategy(o.Strategy),
		First:       o.First,
	}
}

package batch

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/multirunner/internal/process"
)

// Format is an output encoding for reports.
type Format string

// Formats.
const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// ParseFormat validates a format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatTOML:
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json or toml)", s)
	}
}

// Output is the rendered result of one process.
type Output struct {
	ExitCode int    `json:"exit_code" toml:"exit_code"`
	Stdout   string `json:"stdout" toml:"stdout"`
	Stderr   string `json:"stderr" toml:"stderr"`
}

// Report holds results keyed by batch name, then process id.
type Report map[string]map[string]Output

// Add records the results of one batch.
func (r Report) Add(name string, results process.Results) {
	outputs := make(map[string]Output, len(results))
	for id, res := range results {
		outputs[id] = Output{
			ExitCode: res.ExitCode,
			Stdout:   string(res.Stdout),
			Stderr:   string(res.Stderr),
		}
	}
	r[name] = outputs
}

// Write encodes the report to w. Map keys are written in sorted order.
func (r Report) Write(w io.Writer, format Format) error {
	switch format {
	case FormatTOML:
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		return enc.Encode(map[string]map[string]Output(r))
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]map[string]Output(r))
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

package logging

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// Identifier is the SYSLOG_IDENTIFIER attached to every journal entry.
const Identifier = "multirunner"

// JournalHandler writes records to the systemd journal. Attribute keys
// become upper-case fields prefixed with their groups, joined by "_".
type JournalHandler struct {
	level  slog.Leveler
	fields map[string]string // rendered WithAttrs attributes
	groups []string
}

// NewJournalHandler creates a journal handler that follows level.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, fields: map[string]string{}}
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := journalPriority(r.Level)

	vars := maps.Clone(h.fields)
	r.Attrs(func(a slog.Attr) bool {
		putField(vars, h.groups, a)
		return true
	})
	vars["PRIORITY"] = strconv.Itoa(int(priority))
	vars["SYSLOG_IDENTIFIER"] = Identifier

	if err := journal.Send(r.Message, priority, vars); err != nil {
		return fmt.Errorf("sending %q to journal: %w", r.Message, err)
	}
	return nil
}

// WithAttrs implements slog.Handler. Attributes are rendered under the
// groups open at this point.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	fields := maps.Clone(h.fields)
	for _, a := range attrs {
		putField(fields, h.groups, a)
	}
	return &JournalHandler{level: h.level, fields: fields, groups: h.groups}
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{
		level:  h.level,
		fields: h.fields,
		groups: append(slices.Clone(h.groups), name),
	}
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// putField renders a into fields. Groups are flattened; an empty group key
// inlines its members.
func putField(fields map[string]string, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		inner := groups
		if a.Key != "" {
			inner = append(slices.Clone(groups), a.Key)
		}
		for _, member := range a.Value.Group() {
			putField(fields, inner, member)
		}
		return
	}

	name := strings.ToUpper(strings.Join(append(slices.Clone(groups), a.Key), "_"))
	if a.Value.Kind() == slog.KindTime {
		fields[name] = a.Value.Time().Format(time.RFC3339Nano)
		return
	}
	fields[name] = a.Value.String()
}

// IsJournalAvailable reports whether the journal socket is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}

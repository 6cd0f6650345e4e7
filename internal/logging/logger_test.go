package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

func resetState(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	prev := output
	output = &buf
	mutex.Unlock()
	t.Cleanup(func() {
		mutex.Lock()
		output = prev
		mutex.Unlock()
	})
	return &buf
}

func TestModuleLevelOverride(t *testing.T) {
	resetState(t)

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"pool":   "debug",
			"runner": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"pool", true, true, true},
		{"runner", false, false, true},
		{"batch", false, true, true},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestOutputCarriesModule(t *testing.T) {
	buf := resetState(t)

	Initialize(Config{Level: "debug", Format: "text"})
	GetLogger("pool").Debug("process admitted", "id", "a")

	out := buf.String()
	for _, want := range []string{"process admitted", "module=pool", "id=a", "level=DEBUG"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	buf := resetState(t)

	Initialize(Config{Level: "info", Format: "json"})
	GetLogger("runner").Info("scratch created")

	if !strings.Contains(buf.String(), `"module":"runner"`) {
		t.Errorf("expected JSON output, got %s", buf.String())
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState(t)

	loggerBefore := GetLogger("pool")
	handlerBefore := loggerBefore.Handler()
	if handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger created before Initialize should default to info")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"pool": "debug"},
	})

	if !GetLogger("pool").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger after Initialize should accept debug")
	}
	if !handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("cached logger should follow the level set by Initialize")
	}
}

func TestSetLevel(t *testing.T) {
	resetState(t)
	Initialize(Config{Level: "info", Modules: map[string]string{"runner": "error"}})

	pool := GetLogger("pool").Handler()
	runner := GetLogger("runner").Handler()
	ctx := context.Background()

	if err := SetLevel("pool", "debug"); err != nil {
		t.Fatal(err)
	}
	if !pool.Enabled(ctx, slog.LevelDebug) {
		t.Error("pool should accept debug after SetLevel")
	}

	if err := SetLevel("", "warn"); err != nil {
		t.Fatal(err)
	}
	if !pool.Enabled(ctx, slog.LevelDebug) {
		t.Error("pool override should survive a global change")
	}
	if runner.Enabled(ctx, slog.LevelWarn) {
		t.Error("runner override should survive a global change")
	}
	if GetLogger("batch").Handler().Enabled(ctx, slog.LevelInfo) {
		t.Error("new module should start at the new global level")
	}

	if err := SetLevel("pool", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")
	logger.Info("both")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("expected 1 debug message, got %d. Output: %s", count, output)
	}
	if count := strings.Count(output, "both"); count != 2 {
		t.Errorf("expected 2 info messages, got %d. Output: %s", count, output)
	}
}

var errHandlerDown = errors.New("handler down")

type failingHandler struct{ calls int }

func (h *failingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *failingHandler) Handle(context.Context, slog.Record) error {
	h.calls++
	return errHandlerDown
}
func (h *failingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *failingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandlerReportsFailures(t *testing.T) {
	var console, reports bytes.Buffer
	failing := &failingHandler{}
	text := slog.NewTextHandler(&console, nil)

	h := NewMultiHandler(failing, text).OnError(reportTo(&reports))
	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "first", 0))
	if !errors.Is(err, errHandlerDown) {
		t.Fatalf("Handle() error = %v, want %v", err, errHandlerDown)
	}
	if !strings.Contains(console.String(), "first") {
		t.Errorf("console missed the record after a failing handler: %q", console.String())
	}

	// Derived handlers keep reporting.
	slog.New(h).With("module", "pool").Info("second")
	if !strings.Contains(console.String(), "second") {
		t.Errorf("console missed the second record: %q", console.String())
	}
	if got := strings.Count(reports.String(), "logging: handler down"); got != 2 {
		t.Errorf("reported %d failures, want 2: %q", got, reports.String())
	}
	if failing.calls != 2 {
		t.Errorf("failing handler called %d times, want 2", failing.calls)
	}
}

func TestMultiHandlerWithoutFailures(t *testing.T) {
	var console bytes.Buffer
	h := NewMultiHandler(slog.NewTextHandler(&console, nil))
	if err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "ok", 0)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
}

func TestJournalHandlerAttrsKeepTheirGroups(t *testing.T) {
	var lv slog.LevelVar
	h := NewJournalHandler(&lv).
		WithAttrs([]slog.Attr{slog.String("batch", "jobs")}).
		WithGroup("req").
		WithAttrs([]slog.Attr{slog.Int("n", 1)}).(*JournalHandler)

	want := map[string]string{"BATCH": "jobs", "REQ_N": "1"}
	if len(h.fields) != len(want) {
		t.Fatalf("fields = %v, want %v", h.fields, want)
	}
	for k, v := range want {
		if h.fields[k] != v {
			t.Errorf("fields[%s] = %q, want %q", k, h.fields[k], v)
		}
	}
}

func TestPutField(t *testing.T) {
	fields := make(map[string]string)
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, a := range []slog.Attr{
		slog.String("id", "job-1"),
		slog.Int("exit_code", 3),
		slog.Bool("detached", true),
		slog.Float64("ratio", 0.5),
		slog.Duration("elapsed", 1500*time.Millisecond),
		slog.Time("at", stamp),
		slog.Any("error", errors.New("boom")),
		slog.Group("pool", slog.Int("running", 2)),
		{},
	} {
		putField(fields, []string{"req"}, a)
	}

	want := map[string]string{
		"REQ_ID":           "job-1",
		"REQ_EXIT_CODE":    "3",
		"REQ_DETACHED":     "true",
		"REQ_RATIO":        "0.5",
		"REQ_ELAPSED":      "1.5s",
		"REQ_AT":           "2024-01-02T03:04:05Z",
		"REQ_ERROR":        "boom",
		"REQ_POOL_RUNNING": "2",
	}
	if len(fields) != len(want) {
		t.Errorf("got %d fields, want %d: %v", len(fields), len(want), fields)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%s] = %q, want %q", k, fields[k], v)
		}
	}
}

func TestJournalPriority(t *testing.T) {
	tests := map[slog.Level]journal.Priority{
		slog.LevelDebug: journal.PriDebug,
		slog.LevelInfo:  journal.PriInfo,
		slog.LevelWarn:  journal.PriWarning,
		slog.LevelError: journal.PriErr,
	}
	for level, want := range tests {
		if got := journalPriority(level); got != want {
			t.Errorf("journalPriority(%v) = %v, want %v", level, got, want)
		}
	}
}

func TestJournalHandlerFollowsLevelVar(t *testing.T) {
	var lv slog.LevelVar
	lv.Set(slog.LevelWarn)
	h := NewJournalHandler(&lv)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be filtered at warn")
	}
	lv.Set(slog.LevelDebug)
	if !h.WithAttrs(nil).Enabled(context.Background(), slog.LevelDebug) {
		t.Error("derived handler should follow the level var")
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if tt.isNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q): got (%v,%v) want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("expected unknown level rejected")
	}
}

func TestLevel_FlagBeatsEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	if got := Level(""); got != zerolog.ErrorLevel {
		t.Fatalf("env: got %v", got)
	}
	if got := Level("debug"); got != zerolog.DebugLevel {
		t.Fatalf("flag: got %v", got)
	}
}

func TestConsole_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Console(&buf, "test", zerolog.WarnLevel)
	logger.Info().Msg("quiet")
	logger.Warn().Msg("loud")
	out := buf.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, "loud") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "edit.log")
	logger, closer, err := File(path, "test", zerolog.InfoLevel)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	logger.Info().Str("recid", "5").Msg("loaded")
	_ = closer.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), `"recid":"5"`) {
		t.Fatalf("missing field in %q", b)
	}
}

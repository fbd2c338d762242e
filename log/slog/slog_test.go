package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/tagcache"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo}))}

	l.Debug("hidden", tagcache.Fields{"k": "v"})
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered: %q", buf.String())
	}
	l.Warn("set failed", tagcache.Fields{"strict": false, "key": "/a"})
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `msg="set failed" key=/a strict=false`) {
		t.Fatalf("unexpected output: %q", out)
	}
}

package zap

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/tagcache"
)

func TestLoggerForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Warn("set failed", tagcache.Fields{"key": "/product/42", "tags": []string{"product"}})
	l.Debug("HIT", nil)

	all := logs.All()
	if len(all) != 2 {
		t.Fatalf("entries: %d", len(all))
	}
	e := all[0]
	if e.Message != "set failed" || e.Level != zapcore.WarnLevel || e.LoggerName != "tagcache" {
		t.Fatalf("unexpected entry: %+v", e.Entry)
	}
	ctx := e.ContextMap()
	if ctx["key"] != "/product/42" {
		t.Fatalf("fields: %v", ctx)
	}
	if len(all[1].Context) != 0 {
		t.Fatalf("nil fields should add no context")
	}
}

func TestNilLogger(t *testing.T) {
	New(nil).Error("dropped", tagcache.Fields{"k": 1})
}

package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZap_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	n := NewZap(zap.New(core))

	n.Debug("d")
	n.Info("i")
	n.Warn("w")
	n.Error("e", zap.String("selector", "#like"))
	n.Success("s")

	entries := logs.All()
	require.Len(t, entries, 5)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "#like", entries[3].ContextMap()["selector"])

	assert.Equal(t, zapcore.InfoLevel, entries[4].Level)
	assert.Equal(t, "success", entries[4].ContextMap()["severity"])
	assert.Equal(t, "notify", entries[4].LoggerName)
}

func TestZap_SuccessLeavesCallerFieldsAlone(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewZap(zap.New(core))

	backing := make([]zap.Field, 1, 4)
	backing[0] = zap.String("action", "like")
	n.Success("liked", backing...)

	extended := backing[:2]
	assert.Equal(t, zap.Field{}, extended[1])
	require.Len(t, logs.All(), 1)
	assert.Equal(t, "like", logs.All()[0].ContextMap()["action"])
	assert.Equal(t, "success", logs.All()[0].ContextMap()["severity"])
}

func TestZap_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewZap(nil).Success("ignored")
	})
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	assert.NotPanics(t, func() { n.Error("nothing") })
}

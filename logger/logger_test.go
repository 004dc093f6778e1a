package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
	}{
		{name: "JSON output mode", jsonOutput: true},
		{name: "Console output mode", jsonOutput: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = nil
			JSONOutput = false

			require.NoError(t, Initialize(tt.jsonOutput, VerbosityInfo))
			require.NotNil(t, Logger)
			assert.Equal(t, tt.jsonOutput, JSONOutput)

			Logger.Sync()
		})
	}
}

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(0))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(1))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(2))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(7))
	assert.Equal(t, "Info (-v)", LevelName(1))
}

func TestFieldsFromContext(t *testing.T) {
	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "user-9")

	fields := FieldsFromContext(ctx)
	assert.Equal(t, []interface{}{FieldRequestID, "req-1", FieldUserID, "user-9"}, fields)
	assert.Empty(t, FieldsFromContext(context.Background()))
}

func TestLogHelpers_NilSafe(t *testing.T) {
	Logger = nil
	assert.NotPanics(t, func() {
		Infow("x")
		Warnw("x")
		Debugw("x")
		Errorw("x")
		Cleanup()
	})
	require.NoError(t, Initialize(false, VerbosityUser))
}

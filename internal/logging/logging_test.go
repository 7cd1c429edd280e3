package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	for _, lvl := range []string{"", "debug", "info", "warn", "error"} {
		t.Run(lvl, func(t *testing.T) {
			l, err := New(Options{Level: lvl})
			require.NoError(t, err)
			require.NotNil(t, l)
		})
	}
}

func TestNewDevelopmentEnablesDebug(t *testing.T) {
	l, err := New(Options{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "shouty"})
	assert.Error(t, err)
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)
}

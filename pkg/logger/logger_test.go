package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInit_LevelOverride(t *testing.T) {
	l := Init("capitol-watch-test", "prod", "warn")
	require.NotNil(t, l)

	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.Same(t, l, L())
}

func TestInit_InvalidLevelKeepsDefault(t *testing.T) {
	l := Init("capitol-watch-test", "dev", "loud")
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel), "dev config defaults to debug")
}

func TestNamed(t *testing.T) {
	Init("capitol-watch-test", "prod", "info")
	assert.NotNil(t, Named("scraper"))
	assert.NotNil(t, S())
}

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetupLog(t *testing.T) {
	t.Cleanup(func() { SetupLog("info") })

	require.NoError(t, SetupLog(""))
	assert.True(t, L.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, SetupLog("warn"))
	assert.False(t, L.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, L.Core().Enabled(zapcore.WarnLevel))

	assert.Error(t, SetupLog("loud"))
}

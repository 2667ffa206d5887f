package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLoggerLevels(t *testing.T) {
	require.NoError(t, InitLogger(false))
	assert.NotNil(t, GetLogger())
	assert.False(t, GetLogger().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(true))
	assert.True(t, GetLogger().Core().Enabled(zap.DebugLevel))

	SetVerbose(false)
	assert.False(t, GetLogger().Core().Enabled(zap.DebugLevel))
	assert.NotNil(t, Named("test"))
}

func TestVerboseFromEnv(t *testing.T) {
	t.Setenv(VerboseEnv, "1")
	assert.True(t, VerboseFromEnv())

	t.Setenv(VerboseEnv, "no")
	assert.False(t, VerboseFromEnv())
}

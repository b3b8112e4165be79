package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, sync, err := New("debug", true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NotNil(t, sync)

	_, _, err = New("loud", false)
	assert.ErrorContains(t, err, "parse log level")
}

func TestFromCore_ForwardsAttributes(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := FromCore(core)

	logger.Debug("hidden")
	logger.Info("reconciled", "last_id", "6412", "count", 4)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "reconciled", entries[0].Message)

	fields := entries[0].ContextMap()
	assert.Equal(t, "6412", fields["last_id"])
	assert.EqualValues(t, 4, fields["count"])
}

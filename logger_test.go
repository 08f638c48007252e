package rxzip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"", "debug", "INFO", "warning", "error"} {
		logger, err := NewLogger(LogConfig{Level: level})
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}

	_, err := NewLogger(LogConfig{Level: "verbose"})
	assert.Error(t, err)

	logger, err := NewLogger(LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestSetLogger(t *testing.T) {
	logger := zaptest.NewLogger(t)
	SetLogger(logger)
	t.Cleanup(func() { SetLogger(nil) })
	assert.Same(t, logger, Logger())

	SetLogger(nil)
	assert.NotNil(t, Logger())
}

func TestCoordinatorLogsTermination(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	b := newTestPublisher()
	ts := newTestSubscriber(Unbounded)
	Zip([]Publisher{FlowableRange(0, 3), b}, sumZipper, WithLogger(zap.New(core))).Subscribe(ts)

	ts.Cancel()

	require.NotZero(t, logs.Len())
	entry := logs.All()[logs.Len()-1]
	assert.Equal(t, "zip已取消", entry.Message)
	assert.Contains(t, entry.ContextMap(), "zip")
}

// Logging for rxzip
// 基于zap的包级日志，供协调器与默认钩子使用
package rxzip

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig 日志配置
type LogConfig struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
}

// NewLogger 按配置创建zap日志
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named("rxzip"), nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("rxzip: 未知日志级别 %q", level)
	}
}

var (
	loggerOnce    sync.Once
	packageLogger atomic.Pointer[zap.Logger]
)

// Logger 返回包级日志，首次调用时按环境设置构建
func Logger() *zap.Logger {
	if l := packageLogger.Load(); l != nil {
		return l
	}
	loggerOnce.Do(func() {
		s := currentSettings()
		l, err := NewLogger(LogConfig{Level: s.LogLevel, Development: s.LogDevelopment})
		if err != nil {
			l = zap.NewNop()
		}
		packageLogger.CompareAndSwap(nil, l)
	})
	return packageLogger.Load()
}

// SetLogger 替换包级日志，传入nil时使用空日志
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	packageLogger.Store(logger)
}

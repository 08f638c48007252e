// Environment settings for rxzip
// 从环境变量加载默认预取量与日志配置
package rxzip

import (
	"fmt"
	"sync"

	"github.com/kelseyhightower/envconfig"
)

// settingsPrefix 环境变量前缀，例如 RXZIP_PREFETCH
const settingsPrefix = "RXZIP"

// Settings 包级默认设置
type Settings struct {
	Prefetch       int    `envconfig:"PREFETCH" default:"32"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEV" default:"false"`
}

// LoadSettings 从环境变量加载设置
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := envconfig.Process(settingsPrefix, &s); err != nil {
		return nil, fmt.Errorf("rxzip: 加载设置失败: %w", err)
	}
	if s.Prefetch <= 0 {
		return nil, fmt.Errorf("%w: %s_PREFETCH=%d", ErrInvalidPrefetch, settingsPrefix, s.Prefetch)
	}
	return &s, nil
}

// DefaultSettings 返回内置默认设置
func DefaultSettings() *Settings {
	return &Settings{
		Prefetch: 32,
		LogLevel: "info",
	}
}

var (
	settingsOnce sync.Once
	settings     *Settings
)

// currentSettings 首次使用时加载一次，失败时退回默认设置
func currentSettings() *Settings {
	settingsOnce.Do(func() {
		s, err := LoadSettings()
		if err != nil {
			s = DefaultSettings()
		}
		settings = s
	})
	return settings
}

// internal/workers/grants/mirror-grant/config.go
package mirrorgrant

import (
	"time"

	"github.com/step-security-bot/usdr-gost/internal/common/config"
)

type Config struct {
	Index   string
	Timeout time.Duration
}

func LoadConfig(cfg config.SearchMirrorConfig) *Config {
	index := cfg.Index
	if index == "" {
		index = "grants"
	}
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Config{
		Index:   index,
		Timeout: timeout,
	}
}

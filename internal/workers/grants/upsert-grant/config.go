// internal/workers/grants/upsert-grant/config.go
package upsertgrant

import "time"

type Config struct {
	// Timeout bounds a single upsert statement. Zero leaves it to the driver.
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}

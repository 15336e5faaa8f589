// internal/workers/grants/normalize-grant/config.go
package normalizegrant

import "github.com/step-security-bot/usdr-gost/internal/common/config"

// DefaultDateFormats are tried in order when a date field is normalized.
var DefaultDateFormats = []string{"YYYY-MM-DD", "MMDDYYYY"}

// DefaultCloseDate is used when a payload has no CloseDate.
const DefaultCloseDate = "2100-01-01"

type Config struct {
	DateFormats []string
}

func LoadConfig(cfg config.IngestConfig) *Config {
	formats := cfg.DateFormats
	if len(formats) == 0 {
		formats = DefaultDateFormats
	}
	return &Config{
		DateFormats: append([]string(nil), formats...),
	}
}

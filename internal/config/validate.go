package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level: must be one of debug, info, warn, error; got %q", c.Log.Level))
	}

	if c.Source.BaseURL != "" && !strings.HasPrefix(c.Source.BaseURL, "http") {
		errs = append(errs, fmt.Sprintf("source.base_url: must be an http(s) URL, got %q", c.Source.BaseURL))
	}
	if c.Source.Retries < 0 {
		errs = append(errs, fmt.Sprintf("source.retries: must not be negative, got %d", c.Source.Retries))
	}
	if c.Source.RetryDelay < 0 {
		errs = append(errs, "source.retry_delay: must not be negative")
	}

	for i, m := range c.Transfer.Mirrors {
		if !strings.HasPrefix(m, "http") {
			errs = append(errs, fmt.Sprintf("transfer.mirrors[%d]: must be an http(s) URL, got %q", i, m))
		}
	}
	if c.Transfer.MinValidSize < 0 {
		errs = append(errs, fmt.Sprintf("transfer.min_valid_size: must not be negative, got %d", c.Transfer.MinValidSize))
	}
	if c.Transfer.Delay < 0 {
		errs = append(errs, "transfer.delay: must not be negative")
	}

	return errs
}

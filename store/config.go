package store

import "time"

// Config holds configuration for the Store.
type Config struct {
	// Table is the name of the ordering table.
	// Default: "ordinal_items"
	Table string

	// MaxRetries is how many times Update re-reads the domain and retries
	// after losing a race with another writer.
	// Default: 3
	// Max: 10
	MaxRetries int

	// RetryBackoff is the base wait before a retry. The n-th retry waits a
	// random duration between n*RetryBackoff/2 and n*RetryBackoff.
	// Zero retries immediately.
	// Default: 20ms
	RetryBackoff time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Table:        "ordinal_items",
		MaxRetries:   3,
		RetryBackoff: 20 * time.Millisecond,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "ordinal_items"
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxRetries > 10 {
		c.MaxRetries = 10
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
}

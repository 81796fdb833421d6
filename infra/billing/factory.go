package billing

import (
	corebilling "github.com/kilianp07/evstation/core/billing"
	"github.com/kilianp07/evstation/core/errs"
)

// Config selects the bill store backend.
type Config struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

// SetDefaults applies the sqlite backend with a local database file.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.Path == "" {
		c.Path = "bills.db"
	}
}

// FromConfig builds the store described by cfg.
func FromConfig(cfg Config) (corebilling.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "memory":
		return corebilling.NewMemoryStore(), nil
	default:
		return nil, errs.Validationf("unknown billing backend %q", cfg.Backend)
	}
}

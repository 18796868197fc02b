package config

import (
	"fmt"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Pipeline.TemplatePath) == "" {
		return fmt.Errorf("pipeline.template_path is required")
	}
	if c.Pipeline.StaleAfter <= 0 {
		return fmt.Errorf("pipeline.stale_after must be > 0 (got %v)", c.Pipeline.StaleAfter)
	}
	if c.Pipeline.Tolerance < 0 || c.Pipeline.Tolerance > 255 {
		return fmt.Errorf("pipeline.tolerance must be in [0, 255] (got %d)", c.Pipeline.Tolerance)
	}
	if c.Pipeline.MaxLogoPixels <= 0 {
		return fmt.Errorf("pipeline.max_logo_pixels must be > 0 (got %d)", c.Pipeline.MaxLogoPixels)
	}

	if err := c.Ledger.validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if c.Ledger.Backend == LedgerRedis && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for the redis ledger backend")
	}

	if err := c.Mail.validate(); err != nil {
		return fmt.Errorf("mail: %w", err)
	}

	if c.Database.Enabled() && c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Webhook.MaxBody <= 0 {
		return fmt.Errorf("webhook.max_body must be > 0 (got %d)", c.Webhook.MaxBody)
	}

	return nil
}

func (l *LedgerConfig) validate() error {
	switch l.Backend {
	case LedgerMemory, LedgerRedis:
	default:
		return fmt.Errorf("unknown backend %q", l.Backend)
	}
	if l.MaxEntries <= 0 {
		return fmt.Errorf("max_entries must be > 0 (got %d)", l.MaxEntries)
	}
	return nil
}

func (m *MailConfig) validate() error {
	if m.Port <= 0 || m.Port > 65535 {
		return fmt.Errorf("port must be in [1, 65535] (got %d)", m.Port)
	}
	if !strings.Contains(m.From, "@") {
		return fmt.Errorf("from must be an email address (got %q)", m.From)
	}
	if m.Attempts <= 0 {
		return fmt.Errorf("attempts must be > 0 (got %d)", m.Attempts)
	}
	return nil
}

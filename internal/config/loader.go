package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Service
	if cfg.Service.Timeout < 0 {
		errs = append(errs, fmt.Errorf("service.timeout %v is negative", cfg.Service.Timeout))
	}
	seen := make(map[string]int, len(cfg.Service.IssueCategories))
	for i, cat := range cfg.Service.IssueCategories {
		if cat == "" {
			errs = append(errs, fmt.Errorf("service.issue_categories[%d] is empty", i))
			continue
		}
		if prev, dup := seen[cat]; dup {
			errs = append(errs, fmt.Errorf("service.issue_categories[%d] %q is a duplicate of issue_categories[%d]", i, cat, prev))
		}
		seen[cat] = i
	}

	// Storage availability
	if cfg.Service.BaseURL == "" && cfg.Database.PostgresDSN == "" {
		slog.Warn("no service.base_url and no database.postgres_dsn configured; complaints will be held in memory and lost on restart")
	}

	// Dialog
	if th := cfg.Dialog.MatchThreshold; th < 0 || th > 1 {
		errs = append(errs, fmt.Errorf("dialog.match_threshold %.2f is out of range [0, 1]", th))
	}
	if m := cfg.Dialog.AmbiguityMargin; m < 0 || m >= 1 {
		errs = append(errs, fmt.Errorf("dialog.ambiguity_margin %.2f is out of range [0, 1)", m))
	}
	if cfg.Dialog.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("dialog.queue_size %d is negative", cfg.Dialog.QueueSize))
	}
	for intent, phrases := range cfg.Dialog.Synonyms {
		switch intent {
		case "view", "register", "continue", "exit":
		default:
			errs = append(errs, fmt.Errorf("dialog.synonyms key %q is not a known intent (view, register, continue, exit)", intent))
		}
		if len(phrases) == 0 {
			errs = append(errs, fmt.Errorf("dialog.synonyms.%s is empty; omit the key to keep the defaults", intent))
		}
	}

	// SMS
	if cfg.SMS.Provider == "twilio" {
		if cfg.SMS.AccountSID == "" || cfg.SMS.AuthToken == "" {
			errs = append(errs, errors.New("sms.provider twilio requires account_sid and auth_token"))
		}
		if cfg.SMS.FromNumber == "" {
			errs = append(errs, errors.New("sms.provider twilio requires from_number"))
		}
	}

	return errors.Join(errs...)
}

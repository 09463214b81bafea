package config_test

import (
	"testing"

	"github.com/bontonsw/grievbot/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Service: config.ServiceConfig{
			IssueCategories: []string{"Power failure", "Meter stopped"},
		},
		Dialog: config.DialogConfig{MatchThreshold: 0.6},
		SMS:    config.SMSConfig{Provider: "twilio", AccountSID: "AC1", AuthToken: "t", FromNumber: "+1555"},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	if d := config.Diff(old, new); d.Any() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("LogLevelChanged = false")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
}

func TestDiff_DialogTuning(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Dialog.AmbiguityMargin = 0.05

	d := config.Diff(old, new)
	if !d.DialogChanged {
		t.Error("DialogChanged = false")
	}
	if d.LogLevelChanged || d.CategoriesChanged || d.SMSChanged {
		t.Errorf("unrelated flags set: %+v", d)
	}
}

func TestDiff_Categories(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Service.IssueCategories = append(new.Service.IssueCategories, "Billing issue")

	if d := config.Diff(old, new); !d.CategoriesChanged {
		t.Error("CategoriesChanged = false")
	}

	// Reordering counts as a change; the offered list is positional.
	reordered := baseConfig()
	reordered.Service.IssueCategories = []string{"Meter stopped", "Power failure"}
	if d := config.Diff(old, reordered); !d.CategoriesChanged {
		t.Error("CategoriesChanged = false for reordered list")
	}
}

func TestDiff_SMS(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.SMS.AuthToken = "rotated"

	if d := config.Diff(old, new); !d.SMSChanged {
		t.Error("SMSChanged = false")
	}
}

func TestDiff_SynonymOverrides(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Dialog.Synonyms = map[string][]string{"view": {"my bills"}}

	d := config.Diff(old, new)
	if !d.DialogChanged {
		t.Error("DialogChanged = false")
	}
}

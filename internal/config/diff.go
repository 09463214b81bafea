package config

import (
	"maps"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DialogChanged is true if any dialogue tuning (threshold, margin,
	// queue size, synonym overrides) changed. New sessions pick the
	// values up; running sessions keep the rules they started with.
	DialogChanged bool

	// CategoriesChanged is true if the offered issue category list changed.
	CategoriesChanged bool

	// SMSChanged is true if the notifier provider or credentials changed.
	SMSChanged bool
}

// Any reports whether the diff contains any change at all.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.DialogChanged || d.CategoriesChanged || d.SMSChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; listen address,
// TLS, and store settings require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Dialog.MatchThreshold != new.Dialog.MatchThreshold ||
		old.Dialog.AmbiguityMargin != new.Dialog.AmbiguityMargin ||
		old.Dialog.QueueSize != new.Dialog.QueueSize ||
		!maps.EqualFunc(old.Dialog.Synonyms, new.Dialog.Synonyms, slices.Equal) {
		d.DialogChanged = true
	}

	if !slices.Equal(old.Service.IssueCategories, new.Service.IssueCategories) {
		d.CategoriesChanged = true
	}

	if old.SMS != new.SMS {
		d.SMSChanged = true
	}

	return d
}

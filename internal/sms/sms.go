// Package sms delivers notification texts (pending-complaint summaries,
// resolution updates) to customers' registered numbers.
//
// Providers register a constructor under a name; [New] builds the notifier
// selected by sms.provider in the config. An empty provider yields the
// discarding [Noop] notifier so callers never branch on "SMS configured?".
package sms

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bontonsw/grievbot/internal/config"
)

// ErrProviderNotRegistered is returned by [New] when no constructor has been
// registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("sms: provider not registered")

// Notifier sends one SMS message. Implementations must be safe for
// concurrent use.
type Notifier interface {
	// Send delivers body to the E.164 number to. A nil error means the
	// provider accepted the message, not that it was delivered.
	Send(ctx context.Context, to, body string) error
}

// Factory constructs a [Notifier] from the SMS configuration block.
type Factory func(config.SMSConfig) (Notifier, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a notifier constructor available under name. It panics on a
// duplicate name; registration happens from init functions where a duplicate
// is a programming error.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("sms: provider %q registered twice", name))
	}
	registry[name] = f
}

// New builds the notifier selected by cfg.Provider. An empty provider name
// returns [Noop].
func New(cfg config.SMSConfig) (Notifier, error) {
	if cfg.Provider == "" {
		return Noop{}, nil
	}
	registryMu.RLock()
	f, ok := registry[cfg.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sms: provider %q: %w", cfg.Provider, ErrProviderNotRegistered)
	}
	return f(cfg)
}

// Noop discards every message. Used when SMS delivery is not configured.
type Noop struct{}

// Send implements [Notifier] by doing nothing.
func (Noop) Send(context.Context, string, string) error { return nil }

// Package theme persists the dark-mode preference.
package theme

import (
	"context"
	"errors"

	"github.com/celerix-dev/celerix-crm/pkg/sdk"
)

// Preferences reads and writes the isDarkMode flag.
type Preferences struct {
	kv sdk.Store
}

// New returns Preferences backed by kv.
func New(kv sdk.Store) *Preferences {
	return &Preferences{kv: kv}
}

// IsDark reports the stored preference. A missing flag means light mode.
func (p *Preferences) IsDark(ctx context.Context) (bool, error) {
	dark, err := sdk.Get[bool](ctx, p.kv, sdk.KeyDarkMode)
	if errors.Is(err, sdk.ErrKeyNotFound) {
		return false, nil
	}
	return dark, err
}

// SetDark stores the preference.
func (p *Preferences) SetDark(ctx context.Context, dark bool) error {
	return sdk.Set(ctx, p.kv, sdk.KeyDarkMode, dark)
}

// Toggle flips the preference and returns the new value.
func (p *Preferences) Toggle(ctx context.Context) (bool, error) {
	dark, err := p.IsDark(ctx)
	if err != nil {
		return false, err
	}
	return !dark, p.SetDark(ctx, !dark)
}

// Package preferences holds process-wide user interface preferences backed by a store.
package preferences

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BTreeMap/OpsCopilot/internal/models"
	"github.com/BTreeMap/OpsCopilot/internal/store"
)

// ThemeKey is the store key of the theme preference.
const ThemeKey = "theme_appearance"

// Theme is the loaded theme preference. It is read once at Load and written
// through to the store on every change.
type Theme struct {
	mu         sync.RWMutex
	store      store.PreferenceStore
	appearance models.Appearance
}

// Load reads the stored theme. Missing or unrecognized values yield inherit.
func Load(ctx context.Context, st store.PreferenceStore) (*Theme, error) {
	t := &Theme{store: st, appearance: models.AppearanceInherit}
	value, ok, err := st.GetPreference(ThemeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load theme preference: %w", err)
	}
	if !ok {
		slog.Debug("Theme.Load: no stored theme, using inherit")
		return t, nil
	}
	if a := models.Appearance(value); a.Valid() {
		t.appearance = a
	} else {
		slog.Warn("Theme.Load: ignoring invalid stored theme", "value", value)
	}
	slog.Debug("Theme.Load: loaded", "appearance", t.appearance)
	return t, nil
}

// Appearance returns the current appearance.
func (t *Theme) Appearance() models.Appearance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.appearance
}

// Toggle switches dark to light and anything else to dark, persisting the
// result before returning it.
func (t *Theme) Toggle(ctx context.Context) (models.Appearance, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := t.appearance.Toggled()
	if err := t.persistLocked(next); err != nil {
		return t.appearance, err
	}
	return next, nil
}

// Set validates and persists an explicit appearance.
func (t *Theme) Set(ctx context.Context, a models.Appearance) error {
	if !a.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidAppearance, a)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persistLocked(a)
}

func (t *Theme) persistLocked(a models.Appearance) error {
	if err := t.store.SetPreference(ThemeKey, string(a)); err != nil {
		slog.Error("Theme: failed to persist appearance", "error", err, "appearance", a)
		return fmt.Errorf("failed to save theme preference: %w", err)
	}
	slog.Info("Theme: appearance changed", "from", t.appearance, "to", a)
	t.appearance = a
	return nil
}

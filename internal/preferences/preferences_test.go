package preferences

import (
	"context"
	"errors"
	"testing"

	"github.com/BTreeMap/OpsCopilot/internal/models"
	"github.com/BTreeMap/OpsCopilot/internal/store"
)

type failingStore struct {
	getErr, setErr error
}

func (f failingStore) GetPreference(key string) (string, bool, error) { return "", false, f.getErr }
func (f failingStore) SetPreference(key, value string) error          { return f.setErr }

func TestLoad_Defaults(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   models.Appearance
	}{
		{"missing", "", models.AppearanceInherit},
		{"dark", "dark", models.AppearanceDark},
		{"light", "light", models.AppearanceLight},
		{"invalid", "purple", models.AppearanceInherit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewInMemoryStore()
			if tt.stored != "" {
				if err := st.SetPreference(ThemeKey, tt.stored); err != nil {
					t.Fatalf("SetPreference: %v", err)
				}
			}
			theme, err := Load(context.Background(), st)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := theme.Appearance(); got != tt.want {
				t.Errorf("Appearance() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemoryStore()
	theme, err := Load(ctx, st)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, want := range []models.Appearance{models.AppearanceDark, models.AppearanceLight, models.AppearanceDark} {
		got, err := theme.Toggle(ctx)
		if err != nil {
			t.Fatalf("Toggle: %v", err)
		}
		if got != want {
			t.Errorf("Toggle() = %s, want %s", got, want)
		}
		stored, ok, _ := st.GetPreference(ThemeKey)
		if !ok || stored != string(want) {
			t.Errorf("stored = %q, want %q", stored, want)
		}
	}

	// A fresh load sees the persisted value.
	reloaded, err := Load(ctx, st)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Appearance() != models.AppearanceDark {
		t.Errorf("reloaded = %s, want dark", reloaded.Appearance())
	}
}

func TestSet(t *testing.T) {
	ctx := context.Background()
	theme, _ := Load(ctx, store.NewInMemoryStore())

	if err := theme.Set(ctx, "sepia"); !errors.Is(err, models.ErrInvalidAppearance) {
		t.Errorf("expected ErrInvalidAppearance, got %v", err)
	}
	if err := theme.Set(ctx, models.AppearanceLight); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := theme.Toggle(ctx); got != models.AppearanceDark {
		t.Errorf("light toggles to %s, want dark", got)
	}
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Load(ctx, failingStore{getErr: errors.New("db down")}); err == nil {
		t.Errorf("expected load error")
	}

	theme, err := Load(ctx, failingStore{setErr: errors.New("read only")})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := theme.Toggle(ctx); err == nil {
		t.Errorf("expected toggle error")
	}
	if theme.Appearance() != models.AppearanceInherit {
		t.Errorf("failed toggle changed appearance to %s", theme.Appearance())
	}
}

package prefs

import (
	"fmt"

	"github.com/santelocale/healthlog/internal/health"
)

const (
	keyUserName = "user_name"
	// KeyGlucoseUnit is set once the user picks a unit.
	KeyGlucoseUnit = "glucose_unit"
)

// Settings are the user-facing preferences shown on the settings screen.
type Settings struct {
	UserName    string `json:"user_name"`
	GlucoseUnit string `json:"glucose_unit"`
}

// LoadSettings reads settings, applying the mg/dL default.
func (s *Store) LoadSettings() (Settings, error) {
	name, _, err := s.Get(keyUserName)
	if err != nil {
		return Settings{}, err
	}
	unit, ok, err := s.Get(KeyGlucoseUnit)
	if err != nil {
		return Settings{}, err
	}
	if !ok || unit == "" {
		unit = health.UnitMgDL
	}
	return Settings{UserName: name, GlucoseUnit: unit}, nil
}

// SetUserName stores the display name.
func (s *Store) SetUserName(name string) error {
	return s.Set(map[string]string{keyUserName: name})
}

// SetGlucoseUnit stores the unit; only mg/dL and mmol/L are accepted.
func (s *Store) SetGlucoseUnit(unit string) error {
	if !health.ValidUnit(unit) {
		return fmt.Errorf("prefs: unsupported glucose unit %q", unit)
	}
	return s.Set(map[string]string{KeyGlucoseUnit: unit})
}

// ClearSettings resets name and unit to defaults. The key record is untouched.
func (s *Store) ClearSettings() error {
	return s.Delete(keyUserName, KeyGlucoseUnit)
}

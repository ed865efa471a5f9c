package models

import "time"

// ActivityLevel classifies an activity log entry.
type ActivityLevel string

const (
	ActivityInfo    ActivityLevel = "info"
	ActivitySuccess ActivityLevel = "success"
	ActivityWarning ActivityLevel = "warning"
	ActivityError   ActivityLevel = "error"
	ActivitySystem  ActivityLevel = "system"
)

// ActivityEntry is an internal system event recorded while flows run.
type ActivityEntry struct {
	ID    int64         `json:"id"`
	Text  string        `json:"text"`
	Level ActivityLevel `json:"level"`
	Time  time.Time     `json:"time"`
}

// Appearance is the UI theme preference.
type Appearance string

const (
	AppearanceLight   Appearance = "light"
	AppearanceDark    Appearance = "dark"
	AppearanceInherit Appearance = "inherit"
)

// Valid reports whether a is a known appearance.
func (a Appearance) Valid() bool {
	switch a {
	case AppearanceLight, AppearanceDark, AppearanceInherit:
		return true
	}
	return false
}

// Toggled returns the appearance after a toggle: dark becomes light, anything else becomes dark.
func (a Appearance) Toggled() Appearance {
	if a == AppearanceDark {
		return AppearanceLight
	}
	return AppearanceDark
}

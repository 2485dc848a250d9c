package health

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the closed set of measurement kinds. Stored as text.
type Kind string

const (
	KindGlucose  Kind = "GLUCOSE"
	KindActivity Kind = "ACTIVITY"
)

var (
	ErrUnknownKind       = errors.New("health: unknown measurement kind")
	ErrNonFiniteValue    = errors.New("health: numeric value is not finite")
	ErrIdentityAssigned  = errors.New("health: measurement already has an identity")
	ErrInvalidGlucoseRaw = errors.New("health: glucose input is not a number")
)

// ParseKind returns the Kind for s, or ErrUnknownKind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindGlucose, KindActivity:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindGlucose || k == KindActivity
}

// Measurement is one row of the health log.
type Measurement struct {
	// ID is assigned by the store on insert. Zero means "not yet stored".
	ID int64 `json:"id"`

	Kind Kind `json:"kind"`

	// Value is the glucose concentration, or the activity duration in minutes.
	Value float64 `json:"value"`

	// DisplayText keeps what the user typed (e.g. "5,4"). Empty when absent.
	DisplayText string `json:"display_text,omitempty"`

	// Annotation is the meal context for glucose or the activity name.
	Annotation string `json:"annotation,omitempty"`

	// RecordedAt is epoch milliseconds, set by the caller at creation.
	RecordedAt int64 `json:"recorded_at"`
}

// Validate checks the invariants that must hold before an insert.
func (m Measurement) Validate() error {
	if m.ID != 0 {
		return fmt.Errorf("%w: id=%d", ErrIdentityAssigned, m.ID)
	}
	return m.validateFields()
}

// ValidateStored is Validate for a measurement read back from the store.
func (m Measurement) ValidateStored() error {
	return m.validateFields()
}

func (m Measurement) validateFields() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return ErrNonFiniteValue
	}
	return nil
}

// Time returns RecordedAt as a time.Time.
func (m Measurement) Time() time.Time {
	return time.UnixMilli(m.RecordedAt)
}

// Display returns DisplayText, or a French-formatted rendering of Value
// when the user text was not kept.
func (m Measurement) Display() string {
	if m.DisplayText != "" {
		return m.DisplayText
	}
	return FormatValue(m.Value)
}

// FormatValue renders v with a comma decimal separator and no trailing zeros.
func FormatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	return strings.Replace(s, ".", ",", 1)
}

// NewGlucose builds a glucose measurement from the keypad text the user
// entered. Both "5,4" and "5.4" are accepted; the original text is kept for
// display.
func NewGlucose(raw, context string, at time.Time) (Measurement, error) {
	v, err := ParseGlucoseInput(raw)
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{
		Kind:        KindGlucose,
		Value:       v,
		DisplayText: strings.TrimSpace(raw),
		Annotation:  context,
		RecordedAt:  at.UnixMilli(),
	}, nil
}

// NewActivity builds an activity measurement of the given duration.
func NewActivity(label string, minutes int, at time.Time) Measurement {
	return Measurement{
		Kind:       KindActivity,
		Value:      float64(minutes),
		Annotation: label,
		RecordedAt: at.UnixMilli(),
	}
}

// ParseGlucoseInput converts keypad text to a number. The comma is the
// decimal separator on the keypad; a lone "0," is rejected.
func ParseGlucoseInput(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "0," {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGlucoseRaw, raw)
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGlucoseRaw, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNonFiniteValue
	}
	return v, nil
}

package health

import "fmt"

// Glucose units offered in settings. mg/dL is the default in Haiti.
const (
	UnitMgDL  = "mg/dL"
	UnitMmolL = "mmol/L"
)

// GlucoseStatus classifies a reading against the unit threshold.
type GlucoseStatus string

const (
	StatusNormal    GlucoseStatus = "Normal"
	StatusAttention GlucoseStatus = "Attention"
)

// GlucoseThreshold is the first value considered high for unit.
func GlucoseThreshold(unit string) float64 {
	if unit == UnitMmolL {
		return 7.8
	}
	return 140
}

// GlucoseStatusFor returns the status of a glucose measurement.
func GlucoseStatusFor(m Measurement, unit string) (GlucoseStatus, error) {
	if m.Kind != KindGlucose {
		return "", fmt.Errorf("glucose status for %s measurement", m.Kind)
	}
	if m.Value < GlucoseThreshold(unit) {
		return StatusNormal, nil
	}
	return StatusAttention, nil
}

// ValidUnit reports whether unit is one of the supported glucose units.
func ValidUnit(unit string) bool {
	return unit == UnitMgDL || unit == UnitMmolL
}

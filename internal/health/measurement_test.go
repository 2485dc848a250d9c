package health

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("GLUCOSE")
	require.NoError(t, err)
	assert.Equal(t, KindGlucose, k)

	k, err = ParseKind("ACTIVITY")
	require.NoError(t, err)
	assert.Equal(t, KindActivity, k)

	_, err = ParseKind("glucose")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestMeasurementValidate(t *testing.T) {
	tests := []struct {
		name string
		m    Measurement
		want error
	}{
		{"glucose ok", Measurement{Kind: KindGlucose, Value: 120}, nil},
		{"activity ok", Measurement{Kind: KindActivity, Value: 30}, nil},
		{"assigned id", Measurement{ID: 4, Kind: KindGlucose, Value: 1}, ErrIdentityAssigned},
		{"garbage kind", Measurement{Kind: "SLEEP", Value: 1}, ErrUnknownKind},
		{"empty kind", Measurement{Value: 1}, ErrUnknownKind},
		{"nan", Measurement{Kind: KindGlucose, Value: math.NaN()}, ErrNonFiniteValue},
		{"inf", Measurement{Kind: KindGlucose, Value: math.Inf(1)}, ErrNonFiniteValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseGlucoseInput(t *testing.T) {
	v, err := ParseGlucoseInput("5,4")
	require.NoError(t, err)
	assert.InDelta(t, 5.4, v, 1e-9)

	v, err = ParseGlucoseInput("120")
	require.NoError(t, err)
	assert.Equal(t, 120.0, v)

	for _, raw := range []string{"", "0,", "abc", "1,2,3"} {
		_, err := ParseGlucoseInput(raw)
		assert.ErrorIs(t, err, ErrInvalidGlucoseRaw, raw)
	}
}

func TestNewGlucoseKeepsDisplayText(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	m, err := NewGlucose("5,4", "À jeun", at)
	require.NoError(t, err)

	assert.Equal(t, KindGlucose, m.Kind)
	assert.Equal(t, "5,4", m.DisplayText)
	assert.Equal(t, "5,4", m.Display())
	assert.Equal(t, int64(1_700_000_000_000), m.RecordedAt)
	assert.NoError(t, m.Validate())
}

func TestDisplayDerivedFromValue(t *testing.T) {
	m := NewActivity("Marche (30 min)", 30, time.Now())
	assert.Equal(t, "30", m.Display())

	m = Measurement{Kind: KindGlucose, Value: 6.25}
	assert.Equal(t, "6,25", m.Display())
}

func TestGlucoseStatusFor(t *testing.T) {
	tests := []struct {
		value float64
		unit  string
		want  GlucoseStatus
	}{
		{120, UnitMgDL, StatusNormal},
		{140, UnitMgDL, StatusAttention},
		{7.7, UnitMmolL, StatusNormal},
		{7.8, UnitMmolL, StatusAttention},
	}
	for _, tt := range tests {
		got, err := GlucoseStatusFor(Measurement{Kind: KindGlucose, Value: tt.value}, tt.unit)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v %s", tt.value, tt.unit)
	}

	_, err := GlucoseStatusFor(Measurement{Kind: KindActivity, Value: 10}, UnitMgDL)
	assert.Error(t, err)
}

package consumption

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestCalculateStrings(t *testing.T) {
	tests := []struct {
		name      string
		current   string
		previous  *string
		status    Status
		delta     float64
		anomalous bool
	}{
		{"positive delta", "100", strPtr("80"), Computed, 20, false},
		{"negative delta is anomalous", "80", strPtr("100"), Computed, -20, true},
		{"zero consumption", "450", strPtr("450"), Computed, 0, false},
		{"decimals", "100.5", strPtr("0.5"), Computed, 100, false},
		{"leading zeros", "00123", strPtr("0100"), Computed, 23, false},
		{"surrounding spaces", " 12 ", strPtr("2"), Computed, 10, false},
		{"no previous", "100", nil, NotComputed, 0, false},
		{"current not numeric", "abc", strPtr("80"), NonNumeric, 0, false},
		{"previous not numeric", "100", strPtr("8O"), NonNumeric, 0, false},
		{"empty current", "", strPtr("80"), NonNumeric, 0, false},
		{"nan is not numeric", "NaN", strPtr("1"), NonNumeric, 0, false},
		{"inf is not numeric", "100", strPtr("Inf"), NonNumeric, 0, false},
		{"hex is not numeric", "0x10", strPtr("1"), NonNumeric, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateStrings(tt.current, tt.previous)
			assert.Equal(t, tt.status, got.Status)
			assert.InDelta(t, tt.delta, got.Delta, 1e-9)
			assert.Equal(t, tt.anomalous, got.Anomalous)
		})
	}
}

func TestCalculate_NoPreviousWinsOverNonNumericCurrent(t *testing.T) {
	got := Calculate(ParseValue("abc"), Missing())
	assert.Equal(t, NotComputed, got.Status)
}

func TestCalculate_Pure(t *testing.T) {
	a := CalculateStrings("100", strPtr("80"))
	b := CalculateStrings("100", strPtr("80"))
	assert.Equal(t, a, b)
}

func TestParseValue(t *testing.T) {
	v := ParseValue("0042.50")
	assert.Equal(t, Numeric, v.Kind)
	assert.Equal(t, 42.5, v.Number)
	assert.Equal(t, "0042.50", v.Text)

	raw := ParseValue("12a")
	assert.Equal(t, Raw, raw.Kind)
	assert.Equal(t, "12a", raw.Text)

	assert.Equal(t, Raw, ParseValue("-").Kind)
	assert.Equal(t, Raw, ParseValue(".").Kind)
	assert.Equal(t, Numeric, ParseValue("1e3").Kind)
}

func TestResult_Message(t *testing.T) {
	assert.Contains(t, Result{Status: NonNumeric}.Message(), "non-numeric")
	assert.Contains(t, Result{Status: Computed, Delta: -3, Anomalous: true}.Message(), "meter reset")
	assert.Empty(t, Result{Status: Computed, Delta: 3}.Message())
	assert.Equal(t, "computed", Computed.String())
	assert.Equal(t, "non_numeric", NonNumeric.String())
	assert.Equal(t, "not_computed", NotComputed.String())
}

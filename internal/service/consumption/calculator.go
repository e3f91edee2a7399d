// Package consumption computes usage between two meter readings.
package consumption

import (
	"math"
	"strconv"
	"strings"
)

// ValueKind tags how a reading value was understood.
type ValueKind int

const (
	// Absent means no reading was supplied at all.
	Absent ValueKind = iota
	// Numeric means the text parsed as a decimal number.
	Numeric
	// Raw means the text is kept as-is because it is not a number.
	Raw
)

// Value is a reading value parsed once at the calculator boundary.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
}

// Missing returns the value used when a reading was not supplied.
func Missing() Value {
	return Value{Kind: Absent}
}

// ParseValue classifies s. Only plain decimal notation counts as numeric:
// NaN, infinities and hexadecimal floats stay Raw.
func ParseValue(s string) Value {
	trimmed := strings.TrimSpace(s)
	if !isDecimal(trimmed) {
		return Value{Kind: Raw, Text: s}
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return Value{Kind: Raw, Text: s}
	}
	return Value{Kind: Numeric, Number: n, Text: s}
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.', r == 'e', r == 'E':
		case (r == '+' || r == '-') && (i == 0 || s[i-1] == 'e' || s[i-1] == 'E'):
		default:
			return false
		}
	}
	return digits > 0
}

// Status describes the outcome of a calculation.
type Status int

const (
	// NotComputed means there was no previous reading to compare with.
	NotComputed Status = iota
	// NonNumeric means at least one reading is not a number.
	NonNumeric
	// Computed means Delta holds current minus previous.
	Computed
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case NotComputed:
		return "not_computed"
	case NonNumeric:
		return "non_numeric"
	case Computed:
		return "computed"
	}
	return "unknown"
}

// Result is the outcome of Calculate. Delta is meaningful only when
// Status is Computed.
type Result struct {
	Status    Status
	Delta     float64
	Anomalous bool
}

// Message returns a human readable explanation of the result.
func (r Result) Message() string {
	switch r.Status {
	case NotComputed:
		return "No previous reading supplied; consumption not computed"
	case NonNumeric:
		return "Could not calculate consumption (non-numeric readings)"
	}
	if r.Anomalous {
		return "Negative consumption detected; this could indicate a meter reset or error"
	}
	return ""
}

// Calculate compares current against previous. A negative delta is returned
// as-is and flagged anomalous.
func Calculate(current, previous Value) Result {
	if previous.Kind == Absent {
		return Result{Status: NotComputed}
	}
	if current.Kind != Numeric || previous.Kind != Numeric {
		return Result{Status: NonNumeric}
	}
	delta := current.Number - previous.Number
	return Result{Status: Computed, Delta: delta, Anomalous: delta < 0}
}

// CalculateStrings parses both sides and calls Calculate. A nil previous
// means the reading is absent.
func CalculateStrings(current string, previous *string) Result {
	prev := Missing()
	if previous != nil {
		prev = ParseValue(*previous)
	}
	return Calculate(ParseValue(current), prev)
}

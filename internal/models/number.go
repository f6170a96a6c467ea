package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexNumber keeps a field-entered numeric value exactly as submitted. Forms
// send numbers, numeric strings, blanks and occasionally junk; parsing is
// deferred so a blank can be told apart from a real zero and junk can be
// flagged instead of silently coerced.
type FlexNumber struct {
	raw string
}

func NewFlexNumber(v float64) FlexNumber {
	return FlexNumber{raw: strconv.FormatFloat(v, 'f', -1, 64)}
}

func FlexNumberFromString(s string) FlexNumber {
	return FlexNumber{raw: strings.TrimSpace(s)}
}

func (n FlexNumber) Raw() string { return n.raw }

// IsBlank reports whether no value was entered at all.
func (n FlexNumber) IsBlank() bool { return n.raw == "" }

// Float parses the value. Blank, NaN, infinite and non-numeric input all
// report ok=false.
func (n FlexNumber) Float() (float64, bool) {
	if n.raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(n.raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// NonNegative is Float restricted to values >= 0, which is what every count
// and score field expects.
func (n FlexNumber) NonNegative() (float64, bool) {
	v, ok := n.Float()
	if !ok || v < 0 {
		return 0, false
	}
	return v, true
}

// Count parses a non-negative whole number, rounding half up.
func (n FlexNumber) Count() (int, bool) {
	v, ok := n.NonNegative()
	if !ok {
		return 0, false
	}
	return int(math.Round(v)), true
}

// IsMalformed reports a value that was entered but cannot be used.
func (n FlexNumber) IsMalformed() bool {
	if n.IsBlank() {
		return false
	}
	_, ok := n.NonNegative()
	return !ok
}

// Ptr returns the parsed value or nil.
func (n FlexNumber) Ptr() *float64 {
	v, ok := n.Float()
	if !ok {
		return nil
	}
	return &v
}

func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if n.raw == "" {
		return []byte("null"), nil
	}
	if v, ok := n.Float(); ok {
		return json.Marshal(v)
	}
	return json.Marshal(n.raw)
}

func (n *FlexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		n.raw = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n.raw = strings.TrimSpace(s)
	default:
		// numbers keep their literal text; booleans, objects and arrays are
		// retained verbatim so they surface as malformed rather than failing
		// the whole payload
		n.raw = string(b)
	}
	return nil
}

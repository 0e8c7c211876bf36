package analytics

import (
	"math"
	"strconv"
)

// Value is a float64 that marshals NaN as JSON null. Engine results
// use NaN for undefined cells (ages a cohort has not reached, ratios
// with zero baselines); encoding/json rejects NaN, and coercing to 0
// would silently turn "unknown" into "fully churned".
type Value float64

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler; null becomes NaN.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value(math.NaN())
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

// values converts a float slice for JSON egress.
func values(in []float64) []Value {
	out := make([]Value, len(in))
	for i, f := range in {
		out[i] = Value(f)
	}
	return out
}

// valueRows converts a float matrix for JSON egress.
func valueRows(in [][]float64) [][]Value {
	out := make([][]Value, len(in))
	for i, row := range in {
		out[i] = values(row)
	}
	return out
}

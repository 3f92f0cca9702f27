// Package util holds small argument parsing and angle helpers shared by the
// command handlers and binaries.
package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// ParseFloat parses a finite float argument, naming it in the error.
func ParseFloat(name, s string) (float64, error) {
	f, err := strconv.ParseFloat(TrimQuotes(strings.TrimSpace(s)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s %q: not finite", name, s)
	}
	return f, nil
}

// ParseFloats parses args positionally; names label each argument and fix
// how many are expected.
func ParseFloats(args []string, names ...string) ([]float64, error) {
	if len(args) != len(names) {
		return nil, fmt.Errorf("expected %d numeric arguments (%s), got %d",
			len(names), strings.Join(names, " "), len(args))
	}
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := ParseFloat(names[i], a)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 { return d * math.Pi / 180 }

// Rad2Deg converts radians to degrees.
func Rad2Deg(r float64) float64 { return r * 180 / math.Pi }

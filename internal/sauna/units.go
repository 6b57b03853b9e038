package sauna

import (
	"fmt"
	"math"
	"strings"
)

// Device range accepted by the HUUM start endpoint, in Celsius.
const (
	DeviceMinCelsius = 40.0
	DeviceMaxCelsius = 110.0
)

// Unit is the temperature unit used for host-visible values.
type Unit int

const (
	Fahrenheit Unit = iota
	Celsius
)

const DefaultUnit = Fahrenheit

func (u Unit) Valid() bool {
	return u == Celsius || u == Fahrenheit
}

func (u Unit) String() string {
	switch u {
	case Celsius:
		return "C"
	case Fahrenheit:
		return "F"
	default:
		return "unknown"
	}
}

// ParseUnit accepts "C" or "F" in any case. An empty string yields DefaultUnit.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return DefaultUnit, nil
	case "C":
		return Celsius, nil
	case "F":
		return Fahrenheit, nil
	default:
		return DefaultUnit, fmt.Errorf("%w: %q", ErrInvalidUnit, s)
	}
}

// CelsiusToDisplay converts a Celsius value to the display unit.
func CelsiusToDisplay(c float64, u Unit) float64 {
	if u == Fahrenheit {
		return c*9/5 + 32
	}
	return c
}

// DisplayToCelsius is the inverse of CelsiusToDisplay.
func DisplayToCelsius(v float64, u Unit) float64 {
	if u == Fahrenheit {
		return (v - 32) * 5 / 9
	}
	return v
}

// ClampToDeviceRange always works in Celsius, whatever the display unit.
func ClampToDeviceRange(c float64) float64 {
	return math.Max(DeviceMinCelsius, math.Min(c, DeviceMaxCelsius))
}

// Finite reports whether v can be fed to the converters.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// TargetRange is the device range expressed in the display unit.
type TargetRange struct {
	Min float64
	Max float64
}

func NewTargetRange(u Unit) TargetRange {
	return TargetRange{
		Min: CelsiusToDisplay(DeviceMinCelsius, u),
		Max: CelsiusToDisplay(DeviceMaxCelsius, u),
	}
}

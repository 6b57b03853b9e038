package sauna

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HeatingState is the host-facing heating enum. Values match the HomeKit
// heating/cooling state encoding (0 = off, 1 = heat).
type HeatingState int

const (
	HeatingOff HeatingState = 0
	HeatingOn  HeatingState = 1
)

func (h HeatingState) Valid() bool {
	return h == HeatingOff || h == HeatingOn
}

func (h HeatingState) String() string {
	switch h {
	case HeatingOff:
		return "off"
	case HeatingOn:
		return "heat"
	default:
		return "unknown"
	}
}

func ParseHeatingState(s string) (HeatingState, error) {
	switch strings.ToLower(s) {
	case "off":
		return HeatingOff, nil
	case "heat":
		return HeatingOn, nil
	default:
		return HeatingOff, fmt.Errorf("%w: %q", ErrInvalidHeatingState, s)
	}
}

// StatusCode is the HUUM controller state reported by the status endpoint.
type StatusCode int

const (
	StatusOffline       StatusCode = 230
	StatusHeating       StatusCode = 231
	StatusOnline        StatusCode = 232
	StatusLocked        StatusCode = 233
	StatusEmergencyStop StatusCode = 400
)

func (s StatusCode) String() string {
	switch s {
	case StatusOffline:
		return "offline"
	case StatusHeating:
		return "heating"
	case StatusOnline:
		return "online"
	case StatusLocked:
		return "locked"
	case StatusEmergencyStop:
		return "emergency_stop"
	default:
		return "unknown"
	}
}

// HeatingState is the only heating signal the remote exposes.
func (s StatusCode) HeatingState() HeatingState {
	if s == StatusHeating {
		return HeatingOn
	}
	return HeatingOff
}

// Reading is a temperature field as sent by the remote. The API has been seen
// sending numbers, numeric strings and nothing at all, so the raw text is kept
// and parsed on use.
type Reading struct {
	raw     string
	present bool
}

func NewReading(v float64) Reading {
	return Reading{raw: strconv.FormatFloat(v, 'f', -1, 64), present: true}
}

// RawReading is mostly for tests that need an unparsable payload.
func RawReading(s string) Reading {
	return Reading{raw: s, present: true}
}

func (r Reading) Present() bool { return r.present }

func (r Reading) String() string { return r.raw }

// Celsius returns the parsed value. Missing, non-numeric and non-finite
// readings all report ErrUnparsableReading.
func (r Reading) Celsius() (float64, error) {
	if !r.present {
		return 0, ErrUnparsableReading
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(r.raw), 64)
	if err != nil || !Finite(v) {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableReading, r.raw)
	}
	return v, nil
}

func (r *Reading) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = Reading{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Reading{raw: s, present: true}
		return nil
	}
	*r = Reading{raw: string(b), present: true}
	return nil
}

func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.present {
		return []byte("null"), nil
	}
	// Re-format parsed values: ParseFloat accepts "+5", ".5" and hex floats,
	// none of which are valid JSON numbers.
	if v, err := r.Celsius(); err == nil {
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	}
	return json.Marshal(r.raw)
}

// Status is one response of the remote status endpoint. It is never stored
// beyond the call that fetched it.
type Status struct {
	Temperature       Reading    `json:"temperature"`
	TargetTemperature Reading    `json:"targetTemperature"`
	StatusCode        StatusCode `json:"statusCode"`
}

// State is the host-visible projection of the latest status.
type State struct {
	CurrentTemperature  float64
	TargetTemperature   float64
	CurrentHeatingState HeatingState
	TargetHeatingState  HeatingState

	StatusCode StatusCode
	UpdatedAt  time.Time
}

// DefaultState is what the host sees before the first successful poll.
func DefaultState(r TargetRange) State {
	return State{
		CurrentTemperature:  0,
		TargetTemperature:   r.Min,
		CurrentHeatingState: HeatingOff,
		TargetHeatingState:  HeatingOff,
	}
}

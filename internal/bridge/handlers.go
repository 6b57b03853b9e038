package bridge

import (
	"context"

	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

// CurrentTemperature is not clamped: the room may be hotter than any setpoint.
func (b *Bridge) CurrentTemperature(ctx context.Context) float64 {
	status, ok := b.fetchRemoteStatus(ctx)
	if !ok {
		return 0
	}
	c, err := status.Temperature.Celsius()
	if err != nil {
		b.log.Warnw("Ignoring current temperature", "error", err)
		return 0
	}
	return sauna.CelsiusToDisplay(c, b.cfg.Unit)
}

func (b *Bridge) TargetTemperature(ctx context.Context) float64 {
	status, ok := b.fetchRemoteStatus(ctx)
	if !ok {
		return b.rng.Min
	}
	c, err := status.TargetTemperature.Celsius()
	if err != nil {
		b.log.Warnw("Ignoring target temperature", "error", err)
		return b.rng.Min
	}
	return sauna.CelsiusToDisplay(sauna.ClampToDeviceRange(c), b.cfg.Unit)
}

func (b *Bridge) CurrentHeatingState(ctx context.Context) sauna.HeatingState {
	status, ok := b.fetchRemoteStatus(ctx)
	if !ok {
		return sauna.HeatingOff
	}
	return status.StatusCode.HeatingState()
}

// TargetHeatingState mirrors CurrentHeatingState: the remote has a single
// heating signal.
func (b *Bridge) TargetHeatingState(ctx context.Context) sauna.HeatingState {
	status, ok := b.fetchRemoteStatus(ctx)
	if !ok {
		return sauna.HeatingOff
	}
	return status.StatusCode.HeatingState()
}

// SetTargetTemperature takes a display-unit value and starts the heater at
// the equivalent clamped Celsius target. Command failures are logged only.
func (b *Bridge) SetTargetTemperature(ctx context.Context, v float64) error {
	if !sauna.Finite(v) {
		return sauna.ErrInvalidTemperature
	}
	c := sauna.ClampToDeviceRange(sauna.DisplayToCelsius(v, b.cfg.Unit))
	b.startSauna(ctx, c)
	return nil
}

// SetTargetHeatingState starts at the current remote setpoint or stops.
func (b *Bridge) SetTargetHeatingState(ctx context.Context, h sauna.HeatingState) error {
	switch h {
	case sauna.HeatingOn:
		target := b.TargetTemperature(ctx)
		b.startSauna(ctx, sauna.DisplayToCelsius(target, b.cfg.Unit))
	case sauna.HeatingOff:
		b.stopSauna(ctx)
	default:
		return sauna.ErrInvalidHeatingState
	}
	return nil
}

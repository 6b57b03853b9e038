package simulator

import "errors"

var (
	ErrNegativeHeatLossCoefficient = errors.New("heat loss coefficient must be greater or equal to zero")
	ErrNegativeHeaterRate          = errors.New("heater rate must be greater or equal to zero")
	ErrInvalidRegulatorHysteresis  = errors.New("trigger hysteresis must be greater or equal to target hysteresis")
	ErrTargetOutOfRange            = errors.New("target temperature outside the heater range")
)

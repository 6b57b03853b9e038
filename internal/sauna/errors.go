package sauna

import "errors"

var (
	ErrMissingCredentials  = errors.New("username and password are required")
	ErrInvalidUnit         = errors.New("invalid temperature unit")
	ErrInvalidPollInterval = errors.New("poll interval must be greater than zero")
	ErrInvalidTemperature  = errors.New("invalid temperature")
	ErrInvalidHeatingState = errors.New("invalid heating state")
	ErrUnparsableReading   = errors.New("unparsable temperature reading")
)

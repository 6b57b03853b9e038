package ports

import "context"

// Characteristic identifies one of the values the bridge exposes to the host.
type Characteristic int

const (
	CurrentTemperature Characteristic = iota + 1
	TargetTemperature
	CurrentHeatingCoolingState
	TargetHeatingCoolingState
)

func (c Characteristic) String() string {
	switch c {
	case CurrentTemperature:
		return "CurrentTemperature"
	case TargetTemperature:
		return "TargetTemperature"
	case CurrentHeatingCoolingState:
		return "CurrentHeatingCoolingState"
	case TargetHeatingCoolingState:
		return "TargetHeatingCoolingState"
	default:
		return "Unknown"
	}
}

// Props constrains what the host accepts for a characteristic. Zero Step
// and empty ValidValues mean "unconstrained".
type Props struct {
	Min         float64
	Max         float64
	Step        float64
	ValidValues []int
}

type GetHandler func(ctx context.Context) float64

type SetHandler func(ctx context.Context, value float64) error

// Host is the accessory framework seen from the bridge. Heating states travel
// as their integer encoding (0 off, 1 heat).
type Host interface {
	SetProps(c Characteristic, p Props)
	OnGet(c Characteristic, h GetHandler)
	OnSet(c Characteristic, h SetHandler)
	UpdateCharacteristic(c Characteristic, value float64)
}

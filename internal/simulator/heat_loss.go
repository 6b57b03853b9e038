package simulator

import "time"

type HeatLossParams struct {
	RoomTemperature float64
	Coefficient     float64 // >= 0, represents conductivity. 0 for no loss.
}

func (params *HeatLossParams) Validate() error {
	if params.Coefficient < 0 {
		return ErrNegativeHeatLossCoefficient
	}
	return nil
}

// HeatLoss pulls the cabin temperature towards the room temperature.
type HeatLoss struct {
	params HeatLossParams
}

func NewHeatLoss(params HeatLossParams) (*HeatLoss, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &HeatLoss{params: params}, nil
}

func (heatLoss *HeatLoss) DeltaTemperature(cabinTemperature float64, dt time.Duration) float64 {
	diff := heatLoss.params.RoomTemperature - cabinTemperature
	return heatLoss.params.Coefficient * diff * dt.Seconds()
}

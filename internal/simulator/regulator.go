package simulator

type RegulatorParams struct {
	TriggerHysteresis float64 // below target - trigger the element switches on
	TargetHysteresis  float64 // at target + target the element switches off
}

func (params *RegulatorParams) Validate() error {
	if params.TargetHysteresis > params.TriggerHysteresis {
		return ErrInvalidRegulatorHysteresis
	}
	return nil
}

// ElementRegulator is the on/off controller of the heating element during a
// session. Sauna heaters do not modulate, so there is no proportional term.
type ElementRegulator struct {
	params RegulatorParams
	on     bool
}

func NewElementRegulator(params RegulatorParams) *ElementRegulator {
	return &ElementRegulator{params: params}
}

// Update returns whether the element is powered after observing temp.
func (r *ElementRegulator) Update(target, temp float64, session bool) bool {
	if !session {
		r.on = false
		return false
	}
	if !r.on && temp < target-r.params.TriggerHysteresis {
		r.on = true
	} else if r.on && temp >= target+r.params.TargetHysteresis {
		r.on = false
	}
	return r.on
}

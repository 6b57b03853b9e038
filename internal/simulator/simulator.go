// Package simulator is an in-process stand-in for a HUUM heater. It serves the
// same status/start/stop contract as the cloud API, either directly or over
// HTTP, so the bridge can run without a real sauna.
package simulator

import (
	"context"
	"sync"
	"time"

	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

type Params struct {
	HeatLoss   HeatLossParams
	Regulator  RegulatorParams
	HeaterRate float64 // degrees Celsius per second while the element is on
}

func DefaultParams() Params {
	return Params{
		HeatLoss:   HeatLossParams{RoomTemperature: 20, Coefficient: 1e-3},
		Regulator:  RegulatorParams{TriggerHysteresis: 2, TargetHysteresis: 0.5},
		HeaterRate: 0.05,
	}
}

type Simulator struct {
	mu     sync.Mutex
	params Params
	loss   *HeatLoss
	reg    *ElementRegulator

	temp      float64
	target    float64
	hasTarget bool
	session   bool
	element   bool
}

func New(params Params) (*Simulator, error) {
	loss, err := NewHeatLoss(params.HeatLoss)
	if err != nil {
		return nil, err
	}
	if err := params.Regulator.Validate(); err != nil {
		return nil, err
	}
	if params.HeaterRate < 0 {
		return nil, ErrNegativeHeaterRate
	}
	return &Simulator{
		params: params,
		loss:   loss,
		reg:    NewElementRegulator(params.Regulator),
		temp:   params.HeatLoss.RoomTemperature,
	}, nil
}

// Status reports 231 while a session runs and 232 otherwise. The target is
// omitted until the first start, like a freshly paired controller.
func (s *Simulator) Status(ctx context.Context) (sauna.Status, error) {
	if err := ctx.Err(); err != nil {
		return sauna.Status{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st := sauna.Status{
		Temperature: sauna.NewReading(s.temp),
		StatusCode:  sauna.StatusOnline,
	}
	if s.hasTarget {
		st.TargetTemperature = sauna.NewReading(s.target)
	}
	if s.session {
		st.StatusCode = sauna.StatusHeating
	}
	return st, nil
}

func (s *Simulator) Start(ctx context.Context, targetCelsius float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !sauna.Finite(targetCelsius) || targetCelsius < sauna.DeviceMinCelsius || targetCelsius > sauna.DeviceMaxCelsius {
		return ErrTargetOutOfRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = targetCelsius
	s.hasTarget = true
	s.session = true
	return nil
}

func (s *Simulator) Stop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = false
	s.element = s.reg.Update(s.target, s.temp, false)
	return nil
}

// Step advances the cabin temperature by dt.
func (s *Simulator) Step(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.element = s.reg.Update(s.target, s.temp, s.session)
	delta := s.loss.DeltaTemperature(s.temp, dt)
	if s.element {
		delta += s.params.HeaterRate * dt.Seconds()
	}
	s.temp += delta
}

// ElementOn reports whether the heating element is currently powered.
func (s *Simulator) ElementOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.element
}

func (s *Simulator) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temp
}

func (s *Simulator) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Step(interval)
		}
	}
}

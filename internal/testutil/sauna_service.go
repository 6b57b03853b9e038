package testutil

import (
	"context"
	"sync"

	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

// FakeSaunaService is a reusable fake implementing ports.SaunaService.
// Put ONLY what multiple test packages need here.
type FakeSaunaService struct {
	mu sync.Mutex

	S     sauna.State
	Range sauna.TargetRange
	U     sauna.Unit

	SetTargetTemperatureCalled bool
	SetTargetTemperatureArg    float64
	SetTargetTemperatureErr    error

	SetTargetHeatingStateCalled bool
	SetTargetHeatingStateArg    sauna.HeatingState
	SetTargetHeatingStateErr    error

	RefreshCalled bool
	RefreshResult bool
}

func NewFakeSaunaService() *FakeSaunaService {
	return &FakeSaunaService{
		S: sauna.State{
			CurrentTemperature:  140,
			TargetTemperature:   185,
			CurrentHeatingState: sauna.HeatingOn,
			TargetHeatingState:  sauna.HeatingOn,
			StatusCode:          sauna.StatusHeating,
		},
		Range:         sauna.NewTargetRange(sauna.Fahrenheit),
		U:             sauna.Fahrenheit,
		RefreshResult: true,
	}
}

func (f *FakeSaunaService) Snapshot() sauna.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.S
}

func (f *FakeSaunaService) TargetRange() sauna.TargetRange { return f.Range }

func (f *FakeSaunaService) Unit() sauna.Unit { return f.U }

func (f *FakeSaunaService) SetTargetTemperature(_ context.Context, v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetTargetTemperatureCalled = true
	f.SetTargetTemperatureArg = v
	return f.SetTargetTemperatureErr
}

func (f *FakeSaunaService) SetTargetHeatingState(_ context.Context, h sauna.HeatingState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetTargetHeatingStateCalled = true
	f.SetTargetHeatingStateArg = h
	return f.SetTargetHeatingStateErr
}

func (f *FakeSaunaService) Refresh(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefreshCalled = true
	return f.RefreshResult
}

// Set replaces the snapshot under the lock, for tests racing a controller loop.
func (f *FakeSaunaService) Set(s sauna.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.S = s
}

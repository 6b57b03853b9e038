package bridge

import (
	"context"
	"time"

	"github.com/Agrid-Dev/huumbridge/internal/ports"
	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.poll(ctx)
		}
	}
}

// Refresh runs one poll tick now. It reports false when another tick is
// already fetching or the fetch failed.
func (b *Bridge) Refresh(ctx context.Context) bool {
	return b.poll(ctx)
}

func (b *Bridge) poll(ctx context.Context) bool {
	if !b.fetching.CompareAndSwap(false, true) {
		return false
	}
	defer b.fetching.Store(false)

	status, ok := b.fetchRemoteStatus(ctx)
	if !ok {
		b.rec.PollDone(sauna.State{}, false)
		return false
	}

	next := b.project(status, time.Now())

	// Whole-tuple replacement: a slow tick may still overwrite a newer one.
	b.mu.Lock()
	b.s = next
	b.mu.Unlock()

	b.push(next)
	b.rec.PollDone(next, true)
	return true
}

// project uses 0°C and 40°C as fallbacks before conversion. The read
// handlers fall back to 0 and the range minimum in the display unit instead,
// so an unparsable current temperature shows as 32°F here and 0°F there.
func (b *Bridge) project(status sauna.Status, now time.Time) sauna.State {
	current, err := status.Temperature.Celsius()
	if err != nil {
		current = 0
	}
	target, err := status.TargetTemperature.Celsius()
	if err != nil {
		target = sauna.DeviceMinCelsius
	}
	target = sauna.ClampToDeviceRange(target)
	heating := status.StatusCode.HeatingState()

	return sauna.State{
		CurrentTemperature:  sauna.CelsiusToDisplay(current, b.cfg.Unit),
		TargetTemperature:   sauna.CelsiusToDisplay(target, b.cfg.Unit),
		CurrentHeatingState: heating,
		TargetHeatingState:  heating,
		StatusCode:          status.StatusCode,
		UpdatedAt:           now,
	}
}

func (b *Bridge) push(s sauna.State) {
	b.host.UpdateCharacteristic(ports.CurrentTemperature, s.CurrentTemperature)
	b.host.UpdateCharacteristic(ports.TargetTemperature, s.TargetTemperature)
	b.host.UpdateCharacteristic(ports.CurrentHeatingCoolingState, float64(s.CurrentHeatingState))
	b.host.UpdateCharacteristic(ports.TargetHeatingCoolingState, float64(s.TargetHeatingState))
}

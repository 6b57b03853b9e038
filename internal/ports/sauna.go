package ports

import (
	"context"

	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

// SaunaService is the control-plane port used by controllers (HTTP/MQTT/Modbus).
type SaunaService interface {
	Snapshot() sauna.State
	TargetRange() sauna.TargetRange
	Unit() sauna.Unit
	SetTargetTemperature(ctx context.Context, v float64) error
	SetTargetHeatingState(ctx context.Context, h sauna.HeatingState) error
	Refresh(ctx context.Context) bool
}

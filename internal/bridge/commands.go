package bridge

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

const (
	commandStart = "start"
	commandStop  = "stop"
)

// startSauna and stopSauna swallow errors. Nothing is retried or rolled
// back, so rapid toggles can land on the device out of order.
func (b *Bridge) startSauna(ctx context.Context, targetCelsius float64) {
	log := b.log.With("command_id", uuid.NewString(), "command", commandStart)

	began := time.Now()
	err := b.remote.Start(ctx, targetCelsius)
	b.rec.CommandDone(commandStart, time.Since(began), err)
	if err != nil {
		log.Errorw("Error starting sauna", "error", err)
		return
	}
	log.Infof("Sauna started with target temperature: %v°%s",
		sauna.CelsiusToDisplay(targetCelsius, b.cfg.Unit), b.cfg.Unit)
}

func (b *Bridge) stopSauna(ctx context.Context) {
	log := b.log.With("command_id", uuid.NewString(), "command", commandStop)

	began := time.Now()
	err := b.remote.Stop(ctx)
	b.rec.CommandDone(commandStop, time.Since(began), err)
	if err != nil {
		log.Errorw("Error stopping sauna", "error", err)
		return
	}
	log.Info("Sauna stopped")
}

// Package bridge keeps a host accessory in sync with the HUUM cloud API.
//
// Reads issued by the host always go to the remote. A background loop polls
// the remote on a fixed interval and pushes the projected state into the
// host. Writes are translated into start/stop commands and never touch the
// local state: the next poll or read reflects what the device accepted.
package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Agrid-Dev/huumbridge/internal/ports"
	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

const DefaultPollInterval = 30 * time.Second

// Remote is the subset of the HUUM API the bridge drives.
type Remote interface {
	Status(ctx context.Context) (sauna.Status, error)
	Start(ctx context.Context, targetCelsius float64) error
	Stop(ctx context.Context) error
}

// Recorder receives fetch, command and poll outcomes.
type Recorder interface {
	FetchDone(err error)
	CommandDone(command string, d time.Duration, err error)
	PollDone(s sauna.State, ok bool)
}

type Config struct {
	Unit         sauna.Unit
	PollInterval time.Duration
}

type Option func(*Bridge)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(b *Bridge) {
		if r != nil {
			b.rec = r
		}
	}
}

type Bridge struct {
	cfg    Config
	rng    sauna.TargetRange
	remote Remote
	host   ports.Host
	log    *zap.SugaredLogger
	rec    Recorder

	mu sync.RWMutex
	s  sauna.State

	fetching atomic.Bool

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New wires the handlers into host and starts polling. It does not call the
// remote; the first values arrive with the first tick or host read. A nil
// host is allowed when only the control-plane controllers are used.
func New(ctx context.Context, cfg Config, remote Remote, host ports.Host, opts ...Option) (*Bridge, error) {
	if remote == nil {
		return nil, errors.New("bridge: remote is required")
	}
	if !cfg.Unit.Valid() {
		return nil, sauna.ErrInvalidUnit
	}
	if cfg.PollInterval <= 0 {
		return nil, sauna.ErrInvalidPollInterval
	}
	if host == nil {
		host = nopHost{}
	}

	b := &Bridge{
		cfg:    cfg,
		rng:    sauna.NewTargetRange(cfg.Unit),
		remote: remote,
		host:   host,
		log:    zap.NewNop().Sugar(),
		rec:    nopRecorder{},
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.s = sauna.DefaultState(b.rng)

	b.register()
	b.push(b.s)

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	go b.run(runCtx)

	return b, nil
}

func (b *Bridge) register() {
	b.host.SetProps(ports.TargetTemperature, ports.Props{Min: b.rng.Min, Max: b.rng.Max, Step: 1})
	b.host.SetProps(ports.TargetHeatingCoolingState, ports.Props{
		ValidValues: []int{int(sauna.HeatingOff), int(sauna.HeatingOn)},
	})

	b.host.OnGet(ports.CurrentTemperature, b.CurrentTemperature)
	b.host.OnGet(ports.TargetTemperature, b.TargetTemperature)
	b.host.OnGet(ports.CurrentHeatingCoolingState, func(ctx context.Context) float64 {
		return float64(b.CurrentHeatingState(ctx))
	})
	b.host.OnGet(ports.TargetHeatingCoolingState, func(ctx context.Context) float64 {
		return float64(b.TargetHeatingState(ctx))
	})

	b.host.OnSet(ports.TargetTemperature, b.SetTargetTemperature)
	b.host.OnSet(ports.TargetHeatingCoolingState, func(ctx context.Context, v float64) error {
		h := sauna.HeatingState(int(v))
		if float64(h) != v {
			return sauna.ErrInvalidHeatingState
		}
		return b.SetTargetHeatingState(ctx, h)
	})
}

// Close stops the poll loop and waits for an in-flight tick to finish.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.cancel()
		<-b.done
	})
}

func (b *Bridge) Unit() sauna.Unit { return b.cfg.Unit }

func (b *Bridge) TargetRange() sauna.TargetRange { return b.rng }

// Snapshot returns the state last pushed by the poll loop.
func (b *Bridge) Snapshot() sauna.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.s
}

// fetchRemoteStatus never fails loudly: callers get ok == false and fall back.
func (b *Bridge) fetchRemoteStatus(ctx context.Context) (sauna.Status, bool) {
	status, err := b.remote.Status(ctx)
	b.rec.FetchDone(err)
	if err != nil {
		b.log.Errorw("Error fetching sauna status", "error", err)
		return sauna.Status{}, false
	}
	return status, true
}

var _ ports.SaunaService = (*Bridge)(nil)

type nopHost struct{}

func (nopHost) SetProps(ports.Characteristic, ports.Props)         {}
func (nopHost) OnGet(ports.Characteristic, ports.GetHandler)       {}
func (nopHost) OnSet(ports.Characteristic, ports.SetHandler)       {}
func (nopHost) UpdateCharacteristic(ports.Characteristic, float64) {}

type nopRecorder struct{}

func (nopRecorder) FetchDone(error)                          {}
func (nopRecorder) CommandDone(string, time.Duration, error) {}
func (nopRecorder) PollDone(sauna.State, bool)               {}

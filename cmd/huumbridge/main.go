package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Agrid-Dev/huumbridge/cmd/app"
	"github.com/Agrid-Dev/huumbridge/internal/bridge"
	homekitctrl "github.com/Agrid-Dev/huumbridge/internal/controllers/homekit"
	httpctrl "github.com/Agrid-Dev/huumbridge/internal/controllers/http"
	modbusctrl "github.com/Agrid-Dev/huumbridge/internal/controllers/modbus"
	mqttctrl "github.com/Agrid-Dev/huumbridge/internal/controllers/mqtt"
	"github.com/Agrid-Dev/huumbridge/internal/device"
	"github.com/Agrid-Dev/huumbridge/internal/huum"
	"github.com/Agrid-Dev/huumbridge/internal/logger"
	"github.com/Agrid-Dev/huumbridge/internal/metrics"
	"github.com/Agrid-Dev/huumbridge/internal/ports"
	"github.com/Agrid-Dev/huumbridge/internal/simulator"
)

type runner interface {
	Run(ctx context.Context) error
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file (.yaml/.yml/.json)")
	flag.Parse()

	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	lg := logger.New(cfg.Logging.Level)
	defer func() { _ = lg.Sync() }()

	if err := cfg.Validate(); err != nil {
		lg.Fatalw("invalid configuration", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, lg); err != nil && !errors.Is(err, context.Canceled) {
		lg.Errorw("huumbridge exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg app.Config, lg *zap.SugaredLogger) error {
	remote, runners, err := newRemote(ctx, cfg, lg)
	if err != nil {
		return err
	}
	backends := len(runners)
	bcfg, err := cfg.BridgeConfig()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New()
	if err := rec.Register(reg); err != nil {
		return err
	}

	info := device.New(cfg.DeviceID, cfg.Name)

	var host ports.Host
	if cfg.HomeKit.Enabled {
		hk, err := homekitctrl.New(info, bcfg.Unit, homekitctrl.Config{
			Pin:      cfg.HomeKit.Pin,
			StoreDir: cfg.HomeKit.StoreDir,
			Addr:     cfg.HomeKit.Addr,
		}, lg.With("controller", "homekit"))
		if err != nil {
			return err
		}
		host = hk
		runners = append(runners, hk)
	}

	br, err := bridge.New(ctx, bcfg, remote, host,
		bridge.WithLogger(lg.With("device_id", info.ID)),
		bridge.WithRecorder(rec),
	)
	if err != nil {
		return err
	}
	defer br.Close()

	if cfg.Controllers.HTTP.Enabled {
		var gatherer prometheus.Gatherer
		if cfg.Controllers.HTTP.Metrics {
			gatherer = reg
		}
		lg.Infow("http controller listening", "addr", cfg.Controllers.HTTP.Addr)
		runners = append(runners, httpctrl.New(br, cfg.Controllers.HTTP.Addr, info.ID, gatherer))
	}

	if cfg.Controllers.MQTT.Enabled {
		m := cfg.Controllers.MQTT
		mc, err := mqttctrl.New(br, mqttctrl.Config{
			DeviceID:        info.ID,
			BrokerURL:       m.BrokerURL,
			ClientID:        m.ClientID,
			BaseTopic:       m.BaseTopic,
			QoS:             m.QoS,
			RetainSnapshot:  m.RetainSnapshot,
			PublishInterval: m.PublishInterval,
			Username:        m.Username,
			Password:        m.Password,
			Logger:          lg,
		})
		if err != nil {
			return err
		}
		runners = append(runners, mc)
	}

	if cfg.Controllers.MODBUS.Enabled {
		mb, err := modbusctrl.New(br, modbusctrl.Config{
			DeviceID: info.ID,
			Addr:     cfg.Controllers.MODBUS.Addr,
			UnitID:   cfg.Controllers.MODBUS.UnitID,
			Logger:   lg,
		})
		if err != nil {
			return err
		}
		runners = append(runners, mb)
	}

	if len(runners) == backends {
		lg.Warn("no controller enabled; the bridge only polls")
	}

	lg.Infow("huumbridge started",
		"device_id", info.ID,
		"unit", bcfg.Unit.String(),
		"poll_interval", bcfg.PollInterval,
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error { return r.Run(gctx) })
	}
	if len(runners) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	return g.Wait()
}

// newRemote returns the HUUM API client. With api.simulate the client targets
// a heater model served on api.simulate_addr, stepped once per second; the
// returned runners serve it.
func newRemote(ctx context.Context, cfg app.Config, lg *zap.SugaredLogger) (bridge.Remote, []runner, error) {
	if !cfg.API.Simulate {
		client, err := huum.New(cfg.HuumConfig())
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	}

	sim, err := simulator.New(simulator.DefaultParams())
	if err != nil {
		return nil, nil, err
	}
	hc := cfg.SimulatorConfig("")
	srv, err := sim.NewServer(cfg.API.SimulateAddr, hc.Username, hc.Password)
	if err != nil {
		return nil, nil, err
	}
	hc.BaseURL = srv.URL()
	client, err := huum.New(hc)
	if err != nil {
		_ = srv.Close()
		return nil, nil, err
	}

	go func() { _ = sim.Run(ctx, time.Second) }()
	lg.Warnw("using simulated sauna instead of the HUUM API", "url", hc.BaseURL)
	return client, []runner{srv}, nil
}

// Package homekit exposes the sauna as a HomeKit thermostat accessory.
package homekit

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"go.uber.org/zap"

	"github.com/Agrid-Dev/huumbridge/internal/device"
	"github.com/Agrid-Dev/huumbridge/internal/ports"
	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

// Room temperatures above the control range are legal; HAP's default
// CurrentTemperature ceiling of 100 is too low for a sauna in Fahrenheit.
const currentTemperatureMaxCelsius = 150.0

type Config struct {
	Pin      string
	StoreDir string
	Addr     string
}

// Controller is both the HAP server and the ports.Host the bridge talks to.
type Controller struct {
	cfg  Config
	name string
	acc  *accessory.Thermostat
	log  *zap.SugaredLogger
}

func New(info device.Info, unit sauna.Unit, cfg Config, log *zap.SugaredLogger) (*Controller, error) {
	if cfg.Pin == "" {
		cfg.Pin = "00102003"
	}
	if len(cfg.Pin) != 8 {
		return nil, errors.New("homekit: pin must have 8 digits")
	}
	if cfg.StoreDir == "" {
		cfg.StoreDir = "./db"
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	acc := accessory.NewThermostat(accessory.Info{
		Name:         info.Name,
		SerialNumber: info.SerialNumber,
		Manufacturer: info.Manufacturer,
		Model:        info.Model,
		Firmware:     info.Firmware,
	})

	displayUnits := characteristic.TemperatureDisplayUnitsCelsius
	if unit == sauna.Fahrenheit {
		displayUnits = characteristic.TemperatureDisplayUnitsFahrenheit
	}
	acc.Thermostat.TemperatureDisplayUnits.SetValue(displayUnits)
	acc.Thermostat.CurrentTemperature.SetMaxValue(sauna.CelsiusToDisplay(currentTemperatureMaxCelsius, unit))

	return &Controller{cfg: cfg, name: info.Name, acc: acc, log: log}, nil
}

// Run serves HAP until ctx is canceled. Pairings and accessory identity are
// persisted under StoreDir so a restart keeps the same accessory.
func (c *Controller) Run(ctx context.Context) error {
	server, err := hap.NewServer(hap.NewFsStore(c.cfg.StoreDir), c.acc.A)
	if err != nil {
		return fmt.Errorf("homekit server: %w", err)
	}
	server.Pin = c.cfg.Pin
	if c.cfg.Addr != "" {
		server.Addr = c.cfg.Addr
	}

	c.log.Infow("HomeKit accessory published", "name", c.name, "pin", c.cfg.Pin)
	err = server.ListenAndServe(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// ---- ports.Host ----

var _ ports.Host = (*Controller)(nil)

func (c *Controller) SetProps(ch ports.Characteristic, p ports.Props) {
	if f := c.float(ch); f != nil {
		if p.Max > p.Min {
			f.SetMinValue(p.Min)
			f.SetMaxValue(p.Max)
		}
		if p.Step > 0 {
			f.SetStepValue(p.Step)
		}
		return
	}
	if i := c.int(ch); i != nil && len(p.ValidValues) > 0 {
		i.ValidVals = append([]int(nil), p.ValidValues...)
	}
}

func (c *Controller) OnGet(ch ports.Characteristic, h ports.GetHandler) {
	if f := c.float(ch); f != nil {
		f.ValueRequestFunc = func(r *http.Request) (interface{}, int) {
			return h(requestContext(r)), hap.JsonStatusSuccess
		}
		return
	}
	if i := c.int(ch); i != nil {
		i.ValueRequestFunc = func(r *http.Request) (interface{}, int) {
			return int(h(requestContext(r))), hap.JsonStatusSuccess
		}
	}
}

// OnSet uses the set-value request hook rather than the value update
// callbacks: hap skips the latter when a write equals the cached value, and
// the poll loop keeps that cache in sync with the device. Every write must
// still reach the sauna, e.g. HEAT at the already reported target.
func (c *Controller) OnSet(ch ports.Characteristic, h ports.SetHandler) {
	if f := c.float(ch); f != nil {
		f.OnSetRemoteValue(func(v float64) error {
			return c.applyWrite(ch, h, v)
		})
		return
	}
	if i := c.int(ch); i != nil {
		i.OnSetRemoteValue(func(v int) error {
			return c.applyWrite(ch, h, float64(v))
		})
	}
}

func (c *Controller) applyWrite(ch ports.Characteristic, h ports.SetHandler, v float64) error {
	if err := h(context.Background(), v); err != nil {
		c.log.Warnw("Rejected HomeKit write", "characteristic", ch.String(), "value", v, "error", err)
		return err
	}
	return nil
}

func (c *Controller) UpdateCharacteristic(ch ports.Characteristic, v float64) {
	if f := c.float(ch); f != nil {
		f.SetValue(v)
		return
	}
	if i := c.int(ch); i != nil {
		i.SetValue(int(v))
	}
}

func (c *Controller) float(ch ports.Characteristic) *characteristic.Float {
	switch ch {
	case ports.CurrentTemperature:
		return c.acc.Thermostat.CurrentTemperature.Float
	case ports.TargetTemperature:
		return c.acc.Thermostat.TargetTemperature.Float
	default:
		return nil
	}
}

func (c *Controller) int(ch ports.Characteristic) *characteristic.Int {
	switch ch {
	case ports.CurrentHeatingCoolingState:
		return c.acc.Thermostat.CurrentHeatingCoolingState.Int
	case ports.TargetHeatingCoolingState:
		return c.acc.Thermostat.TargetHeatingCoolingState.Int
	default:
		return nil
	}
}

func requestContext(r *http.Request) context.Context {
	if r == nil {
		return context.Background()
	}
	return r.Context()
}

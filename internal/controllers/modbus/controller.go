package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	mbserver "github.com/tbrandon/mbserver"
	"go.uber.org/zap"

	"github.com/Agrid-Dev/huumbridge/internal/ports"
	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

// Register map:
//
//	HR 0   target temperature x100 (display unit, r/w)
//	IR 0   current temperature x100 (display unit)
//	IR 1   last HUUM status code
//	coil 0 target heating state (r/w)
//	DI 0   current heating state
const (
	holdingRegisters = 1
	inputRegisters   = 2
	coils            = 1
	discreteInputs   = 1
)

// Config for the Modbus controller.
type Config struct {
	DeviceID string
	Addr     string
	UnitID   byte // UnitID (Modbus slave/unit ID). Use an integer 1..247.

	Logger *zap.SugaredLogger
}

type Controller struct {
	svc ports.SaunaService
	cfg Config
	log *zap.SugaredLogger

	serv *mbserver.Server
}

func New(svc ports.SaunaService, cfg Config) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{svc: svc, cfg: cfg, log: log.With("controller", "modbus")}, nil
}

// Run starts the Modbus server. Reads are served from the bridge snapshot and
// writes are forwarded as sauna commands. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	serv := mbserver.NewServer()
	c.serv = serv

	// Register handlers BEFORE starting the TCP listener to avoid races inside mbserver
	// between handler registration and the server's goroutines.
	serv.RegisterFunctionHandler(1, c.readCoils)
	serv.RegisterFunctionHandler(2, c.readDiscreteInputs)
	serv.RegisterFunctionHandler(3, c.readHoldingRegisters)
	serv.RegisterFunctionHandler(4, c.readInputRegisters)
	serv.RegisterFunctionHandler(5, c.writeSingleCoil)
	serv.RegisterFunctionHandler(6, c.writeSingleRegister)
	serv.RegisterFunctionHandler(16, c.writeMultipleRegisters)

	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}
	c.log.Infow("listening", "addr", c.cfg.Addr, "unit_id", c.cfg.UnitID)

	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

// Read Coils (function 1) - coil 0 is the target heating state.
func (c *Controller) readCoils(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	if _, _, exc := readRange(frame, 2000, coils); exc != nil {
		return []byte{}, exc
	}
	return bitResponse(c.svc.Snapshot().TargetHeatingState == sauna.HeatingOn), &mbserver.Success
}

// Read Discrete Inputs (function 2) - DI 0 is the current heating state.
func (c *Controller) readDiscreteInputs(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	if _, _, exc := readRange(frame, 2000, discreteInputs); exc != nil {
		return []byte{}, exc
	}
	return bitResponse(c.svc.Snapshot().CurrentHeatingState == sauna.HeatingOn), &mbserver.Success
}

func (c *Controller) readHoldingRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := readRange(frame, 125, holdingRegisters)
	if exc != nil {
		return []byte{}, exc
	}
	snap := c.svc.Snapshot()
	regs := []uint16{encodeTemp(snap.TargetTemperature)}
	return registerResponse(regs[start : start+qty]), &mbserver.Success
}

func (c *Controller) readInputRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := readRange(frame, 125, inputRegisters)
	if exc != nil {
		return []byte{}, exc
	}
	snap := c.svc.Snapshot()
	regs := []uint16{
		encodeTemp(snap.CurrentTemperature),
		uint16(snap.StatusCode),
	}
	return registerResponse(regs[start : start+qty]), &mbserver.Success
}

// Write Single Coil (function 5) - target heating state.
func (c *Controller) writeSingleCoil(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if addr != 0 {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	var h sauna.HeatingState
	switch value {
	case 0x0000:
		h = sauna.HeatingOff
	case 0xFF00:
		h = sauna.HeatingOn
	default:
		return []byte{}, &mbserver.IllegalDataValue
	}

	if err := c.svc.SetTargetHeatingState(context.Background(), h); err != nil {
		c.log.Warnw("set target heating state", "error", err)
		return []byte{}, &mbserver.IllegalDataValue
	}

	// echo request (address + value)
	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

// Write Single Register (function 6)
func (c *Controller) writeSingleRegister(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	if exc := c.writeRegister(int(addr), value); exc != nil {
		return []byte{}, exc
	}

	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

// Write Multiple Registers (function 16)
func (c *Controller) writeMultipleRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	d := frame.GetData()
	if len(d) < 5 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	start := binary.BigEndian.Uint16(d[0:2])
	quantity := binary.BigEndian.Uint16(d[2:4])
	byteCount := int(d[4])
	if byteCount != int(quantity)*2 || len(d) < 5+byteCount {
		return []byte{}, &mbserver.IllegalDataValue
	}
	for i := 0; i < int(quantity); i++ {
		val := binary.BigEndian.Uint16(d[5+i*2 : 5+i*2+2])
		if exc := c.writeRegister(int(start)+i, val); exc != nil {
			return []byte{}, exc
		}
	}

	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:2], start)
	binary.BigEndian.PutUint16(resp[2:4], quantity)
	return resp, &mbserver.Success
}

func (c *Controller) writeRegister(addr int, value uint16) *mbserver.Exception {
	if addr != 0 {
		return &mbserver.IllegalDataAddress
	}
	v := decodeTemp(value)
	rng := c.svc.TargetRange()
	if v < rng.Min || v > rng.Max {
		return &mbserver.IllegalDataValue
	}
	if err := c.svc.SetTargetTemperature(context.Background(), v); err != nil {
		c.log.Warnw("set target temperature", "value", v, "error", err)
		return &mbserver.IllegalDataValue
	}
	return nil
}

// readRange validates a read request against a block of size addresses.
func readRange(frame mbserver.Framer, limit, size int) (int, int, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return 0, 0, &mbserver.IllegalDataValue
	}
	start := int(binary.BigEndian.Uint16(data[0:2]))
	qty := int(binary.BigEndian.Uint16(data[2:4]))
	if qty == 0 || qty > limit {
		return 0, 0, &mbserver.IllegalDataValue
	}
	if start+qty > size {
		return 0, 0, &mbserver.IllegalDataAddress
	}
	return start, qty, nil
}

// response: byte count (1) + one packed bit
func bitResponse(on bool) []byte {
	b := byte(0)
	if on {
		b = 0x01
	}
	return []byte{1, b}
}

func registerResponse(regs []uint16) []byte {
	byteCount := len(regs) * 2
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i, r := range regs {
		binary.BigEndian.PutUint16(resp[1+i*2:1+i*2+2], r)
	}
	return resp
}

const TemperatureScale int = 100

func encodeTemp(v float64) uint16 {
	r := min(max(int(math.Round(v*float64(TemperatureScale))), math.MinInt16), math.MaxInt16)
	return uint16(int16(r))
}

func decodeTemp(u uint16) float64 {
	i := int16(u)
	return float64(i) / float64(TemperatureScale)
}

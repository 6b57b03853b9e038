package modbusctrl

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/modbus"

	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

// fake service for tests
type spySaunaService struct {
	mu sync.Mutex
	s  sauna.State

	// record calls
	setTemperatureCalls []float64
	setHeatingCalls     []sauna.HeatingState
}

func (f *spySaunaService) Snapshot() sauna.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}
func (f *spySaunaService) TargetRange() sauna.TargetRange {
	return sauna.NewTargetRange(sauna.Celsius)
}
func (f *spySaunaService) Unit() sauna.Unit { return sauna.Celsius }
func (f *spySaunaService) SetTargetTemperature(_ context.Context, v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setTemperatureCalls = append(f.setTemperatureCalls, v)
	return nil
}
func (f *spySaunaService) SetTargetHeatingState(_ context.Context, h sauna.HeatingState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setHeatingCalls = append(f.setHeatingCalls, h)
	return nil
}
func (f *spySaunaService) Refresh(context.Context) bool { return true }

func findFreeTCPAddr(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	a := l.Addr().String()
	_ = l.Close()
	return a
}

const settle = 50 * time.Millisecond

func TestNewValidation(t *testing.T) {
	if _, err := New(&spySaunaService{}, Config{}); err == nil {
		t.Fatal("expected error when UnitID missing")
	}
	c, err := New(&spySaunaService{}, Config{UnitID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if c.cfg.Addr != "127.0.0.1:1502" {
		t.Fatalf("expected default Addr, got %q", c.cfg.Addr)
	}
}

func TestEncodeDecodeTemp(t *testing.T) {
	cases := []struct {
		in   float64
		want uint16
	}{
		{85, 8500},
		{230, 23000},
		{-1.5, uint16(0xFFFF - 149)},
		{1000, 32767},
	}
	for _, tc := range cases {
		if got := encodeTemp(tc.in); got != tc.want {
			t.Fatalf("encodeTemp(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if got := decodeTemp(encodeTemp(72.25)); got != 72.25 {
		t.Fatalf("round trip: got %v", got)
	}
}

func TestModbusControllerHandlers(t *testing.T) {
	fs := &spySaunaService{}
	fs.s = sauna.State{
		CurrentTemperature:  64.5,
		TargetTemperature:   85,
		CurrentHeatingState: sauna.HeatingOn,
		TargetHeatingState:  sauna.HeatingOn,
		StatusCode:          sauna.StatusHeating,
	}

	addr := findFreeTCPAddr(t)

	ctrl, err := New(fs, Config{
		DeviceID: "sauna",
		Addr:     addr,
		UnitID:   1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := t.Context()
	go func() {
		_ = ctrl.Run(ctx)
	}()

	time.Sleep(settle)

	handler := modbus.NewTCPClientHandler(addr)
	if err := handler.Connect(); err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer handler.Close()
	client := modbus.NewClient(handler)

	res, err := client.ReadHoldingRegisters(0, 1)
	if err != nil {
		t.Fatalf("read holding: %v", err)
	}
	if got := binary.BigEndian.Uint16(res); got != 8500 {
		t.Fatalf("target temperature register: got %d", got)
	}

	res, err = client.ReadInputRegisters(0, 2)
	if err != nil {
		t.Fatalf("read input: %v", err)
	}
	if len(res) != 4 {
		t.Fatalf("expected 4 bytes got %d", len(res))
	}
	if got := binary.BigEndian.Uint16(res[0:2]); got != 6450 {
		t.Fatalf("current temperature register: got %d", got)
	}
	if got := binary.BigEndian.Uint16(res[2:4]); got != 231 {
		t.Fatalf("status code register: got %d", got)
	}

	res, err = client.ReadDiscreteInputs(0, 1)
	if err != nil {
		t.Fatalf("read discrete inputs: %v", err)
	}
	if res[0] != 0x01 {
		t.Fatalf("expected current heating on, got %x", res[0])
	}

	res, err = client.ReadCoils(0, 1)
	if err != nil {
		t.Fatalf("read coils: %v", err)
	}
	if res[0] != 0x01 {
		t.Fatalf("expected target heating on, got %x", res[0])
	}

	if _, err := client.ReadInputRegisters(1, 2); err == nil {
		t.Fatal("expected illegal address reading past IR 1")
	}

	// Write target temperature
	if _, err := client.WriteSingleRegister(0, encodeTemp(90)); err != nil {
		t.Fatalf("write register: %v", err)
	}
	time.Sleep(settle)
	fs.mu.Lock()
	if len(fs.setTemperatureCalls) == 0 || fs.setTemperatureCalls[len(fs.setTemperatureCalls)-1] != 90 {
		fs.mu.Unlock()
		t.Fatalf("SetTargetTemperature not called")
	}
	fs.mu.Unlock()

	// Out of range setpoint is refused
	if _, err := client.WriteSingleRegister(0, encodeTemp(20)); err == nil {
		t.Fatal("expected out of range write to fail")
	}

	// Write coil 0 off
	if _, err := client.WriteSingleCoil(0, 0x0000); err != nil {
		t.Fatalf("write coil: %v", err)
	}
	time.Sleep(settle)
	fs.mu.Lock()
	if len(fs.setHeatingCalls) == 0 || fs.setHeatingCalls[len(fs.setHeatingCalls)-1] != sauna.HeatingOff {
		fs.mu.Unlock()
		t.Fatalf("SetTargetHeatingState not called")
	}
	fs.mu.Unlock()
}

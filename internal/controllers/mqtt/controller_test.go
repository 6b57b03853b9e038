package mqttctrl

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap/zaptest"

	"github.com/Agrid-Dev/huumbridge/internal/sauna"
	"github.com/Agrid-Dev/huumbridge/internal/testutil"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeToken struct {
	err  error
	done chan struct{}
}

func (t fakeToken) Done() <-chan struct{} {
	if t.done == nil {
		t.done = make(chan struct{})
		close(t.done)
	}
	return t.done
}

func (t fakeToken) Wait() bool                       { return true }
func (t fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (t fakeToken) Error() error                     { return t.err }

type publishCall struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakeClient struct {
	publishes []publishCall
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) IsConnectionOpen() bool { return true }
func (c *fakeClient) Connect() mqtt.Token    { return fakeToken{} }
func (c *fakeClient) Disconnect(_ uint)      {}
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = append([]byte(nil), v...)
	case string:
		b = []byte(v)
	default:
		// shouldn't happen in our controller, but keep it safe
		tmp, _ := json.Marshal(v)
		b = tmp
	}
	c.publishes = append(c.publishes, publishCall{
		topic: topic, qos: qos, retain: retained, payload: b,
	})
	return fakeToken{}
}
func (c *fakeClient) Subscribe(_ string, _ byte, _ mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}
func (c *fakeClient) SubscribeMultiple(_ map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	return fakeToken{}
}
func (c *fakeClient) Unsubscribe(_ ...string) mqtt.Token       { return fakeToken{} }
func (c *fakeClient) AddRoute(_ string, _ mqtt.MessageHandler) {}
func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader  { return mqtt.ClientOptionsReader{} }

// ---- tests ----
func newDefaultSvc() *testutil.FakeSaunaService {
	return testutil.NewFakeSaunaService()
}

func newTestController(t *testing.T, svc *testutil.FakeSaunaService) (*Controller, *fakeClient) {
	t.Helper()
	c, err := New(svc, Config{DeviceID: "sauna", Logger: zaptest.NewLogger(t).Sugar()})
	if err != nil {
		t.Fatal(err)
	}
	fc := &fakeClient{}
	c.client = fc
	return c, fc
}

func TestNewDefaults(t *testing.T) {
	svc := newDefaultSvc()
	c, err := New(svc, Config{DeviceID: "sauna"})
	if err != nil {
		t.Fatal(err)
	}

	if c.cfg.BrokerURL != "tcp://localhost:1883" {
		t.Fatalf("expected default BrokerURL, got %q", c.cfg.BrokerURL)
	}
	if c.cfg.BaseTopic != "huumbridge/sauna" {
		t.Fatalf("expected default BaseTopic, got %q", c.cfg.BaseTopic)
	}
	if c.cfg.ClientID != "huumbridge-sauna" {
		t.Fatalf("expected default ClientID, got %q", c.cfg.ClientID)
	}
	if c.cfg.PublishInterval != 1*time.Second {
		t.Fatalf("expected default PublishInterval, got %v", c.cfg.PublishInterval)
	}
	if c.log == nil {
		t.Fatal("expected a nop logger when none is configured")
	}
}

func TestNewValidation(t *testing.T) {
	svc := newDefaultSvc()

	if _, err := New(svc, Config{}); err == nil {
		t.Fatal("expected error when DeviceID missing")
	}

	if _, err := New(svc, Config{DeviceID: "x", QoS: 2}); err == nil {
		t.Fatal("expected error when QoS > 1")
	}
}

func TestTopicJoin(t *testing.T) {
	svc := newDefaultSvc()
	c, err := New(svc, Config{DeviceID: "sauna", BaseTopic: "huumbridge/sauna/"})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.topic("snapshot"); got != "huumbridge/sauna/snapshot" {
		t.Fatalf("expected topic without double slashes, got %q", got)
	}
}

func TestDecodeValueStrict(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		v, err := decodeValueStrict[float64]([]byte(`{"value": 185.5}`))
		if err != nil {
			t.Fatal(err)
		}
		if v != 185.5 {
			t.Fatalf("expected 185.5, got %v", v)
		}
	})

	t.Run("missing value", func(t *testing.T) {
		_, err := decodeValueStrict[string]([]byte(`{}`))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := decodeValueStrict[string]([]byte(`{"value":"heat","extra":1}`))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := decodeValueStrict[string]([]byte(`{"value":`))
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestOnMessage_IgnoresWrongPrefix(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := newTestController(t, svc)

	c.onMessage(nil, fakeMessage{
		topic:   "otherprefix/set/target_heating_state",
		payload: []byte(`{"value":"off"}`),
	})

	if svc.SetTargetHeatingStateCalled {
		t.Fatal("expected SetTargetHeatingState not called")
	}
}

func TestOnMessage_TargetTemperature(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := newTestController(t, svc)

	c.onMessage(nil, fakeMessage{
		topic:   "huumbridge/sauna/set/target_temperature",
		payload: []byte(`{"value":194}`),
	})

	if !svc.SetTargetTemperatureCalled || svc.SetTargetTemperatureArg != 194 {
		t.Fatalf("expected SetTargetTemperature(194), got called=%v arg=%v", svc.SetTargetTemperatureCalled, svc.SetTargetTemperatureArg)
	}
}

func TestOnMessage_TargetTemperatureOutOfRange_DoesNotCallService(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := newTestController(t, svc)

	c.onMessage(nil, fakeMessage{
		topic:   "huumbridge/sauna/set/target_temperature",
		payload: []byte(`{"value":20}`),
	})

	if svc.SetTargetTemperatureCalled {
		t.Fatal("expected SetTargetTemperature not called")
	}
}

func TestOnMessage_TargetHeatingState(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := newTestController(t, svc)

	c.onMessage(nil, fakeMessage{
		topic:   "huumbridge/sauna/set/target_heating_state",
		payload: []byte(`{"value":"off"}`),
	})

	if !svc.SetTargetHeatingStateCalled || svc.SetTargetHeatingStateArg != sauna.HeatingOff {
		t.Fatalf("expected SetTargetHeatingState(off), got called=%v arg=%v", svc.SetTargetHeatingStateCalled, svc.SetTargetHeatingStateArg)
	}
}

func TestOnMessage_TargetHeatingStateInvalid_DoesNotCallService(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := newTestController(t, svc)

	c.onMessage(nil, fakeMessage{
		topic:   "huumbridge/sauna/set/target_heating_state",
		payload: []byte(`{"value":"cool"}`),
	})

	if svc.SetTargetHeatingStateCalled {
		t.Fatal("expected SetTargetHeatingState not called")
	}
}

func TestOnMessage_RefreshPublishes(t *testing.T) {
	svc := newDefaultSvc()
	c, fc := newTestController(t, svc)

	c.onMessage(nil, fakeMessage{topic: "huumbridge/sauna/set/refresh"})

	if !svc.RefreshCalled {
		t.Fatal("expected Refresh called")
	}
	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish after refresh, got %d", len(fc.publishes))
	}
}

func TestOnMessage_RefreshFailed_DoesNotPublish(t *testing.T) {
	svc := newDefaultSvc()
	svc.RefreshResult = false
	c, fc := newTestController(t, svc)

	c.onMessage(nil, fakeMessage{topic: "huumbridge/sauna/set/refresh"})

	if len(fc.publishes) != 0 {
		t.Fatalf("expected no publish, got %d", len(fc.publishes))
	}
}

func TestPublishSnapshot_PublishesJSON(t *testing.T) {
	svc := newDefaultSvc()
	c, _ := New(svc, Config{DeviceID: "sauna", QoS: 1, RetainSnapshot: true})

	fc := &fakeClient{}
	c.client = fc

	c.publishSnapshot()

	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(fc.publishes))
	}

	p := fc.publishes[0]
	if p.topic != "huumbridge/sauna/snapshot" {
		t.Fatalf("expected snapshot topic, got %q", p.topic)
	}
	if p.qos != 1 || p.retain != true {
		t.Fatalf("expected qos=1 retain=true, got qos=%d retain=%v", p.qos, p.retain)
	}

	var got map[string]any
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatalf("invalid published json: %v payload=%s", err, string(p.payload))
	}
	if got["current_heating_state"] != "heat" {
		t.Fatalf("expected current_heating_state=heat, got %v", got["current_heating_state"])
	}
	if got["unit"] != "F" || got["target_temperature"] != 185.0 {
		t.Fatalf("unexpected payload %v", got)
	}
	if _, ok := got["updated_at"]; ok {
		t.Fatalf("expected updated_at omitted before the first poll, got %v", got["updated_at"])
	}
}

func TestPublishIfChanged(t *testing.T) {
	svc := newDefaultSvc()
	c, fc := newTestController(t, svc)

	last := c.publishIfChanged(svc.Snapshot())
	if len(fc.publishes) != 0 {
		t.Fatalf("expected no publish for unchanged state, got %d", len(fc.publishes))
	}

	next := svc.Snapshot()
	next.CurrentTemperature = 150
	svc.Set(next)

	last = c.publishIfChanged(last)
	if len(fc.publishes) != 1 {
		t.Fatalf("expected 1 publish after change, got %d", len(fc.publishes))
	}
	if last.CurrentTemperature != 150 {
		t.Fatalf("expected last to track the published state, got %v", last.CurrentTemperature)
	}
}

// Service errors are logged, never propagated.
func TestOnMessage_ServiceError_IsIgnored(t *testing.T) {
	svc := newDefaultSvc()
	svc.SetTargetTemperatureErr = errors.New("boom")
	c, _ := newTestController(t, svc)

	c.onMessage(nil, fakeMessage{
		topic:   "huumbridge/sauna/set/target_temperature",
		payload: []byte(`{"value":180}`),
	})

	if !svc.SetTargetTemperatureCalled {
		t.Fatal("expected SetTargetTemperature called")
	}
}

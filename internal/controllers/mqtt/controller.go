package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Agrid-Dev/huumbridge/internal/ports"
	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

type Config struct {
	// Identity
	DeviceID string

	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	BaseTopic string

	// Behavior
	QoS             byte
	RetainSnapshot  bool
	PublishInterval time.Duration

	Username string
	Password string

	Logger *zap.SugaredLogger
}

type Controller struct {
	svc ports.SaunaService
	cfg Config
	log *zap.SugaredLogger

	client mqtt.Client
}

func New(svc ports.SaunaService, cfg Config) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.DeviceID == "" {
		return nil, errors.New("mqtt: DeviceID is required")
	}
	if cfg.BaseTopic == "" {
		cfg.BaseTopic = "huumbridge/" + cfg.DeviceID
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "huumbridge-" + cfg.DeviceID
	}
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = 1 * time.Second
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{
		svc: svc,
		cfg: cfg,
		log: log.With("controller", "mqtt"),
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = func(cl mqtt.Client) {
		topic := c.topic("set/+")
		token := cl.Subscribe(topic, c.cfg.QoS, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Errorw("subscribe failed", "topic", topic, "error", err)
		}
	}

	c.client = mqtt.NewClient(opts)
	tok := c.client.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.log.Infow("connected", "broker", c.cfg.BrokerURL, "base_topic", c.cfg.BaseTopic)

	ticker := time.NewTicker(c.cfg.PublishInterval)
	defer ticker.Stop()

	last := c.svc.Snapshot()
	c.publishSnapshot()

	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			return ctx.Err()

		case <-ticker.C:
			last = c.publishIfChanged(last)
		}
	}
}

// publishIfChanged publishes when the bridge state differs from last and
// returns the state to compare against next time.
func (c *Controller) publishIfChanged(last sauna.State) sauna.State {
	cur := c.svc.Snapshot()
	if cur == last {
		return last
	}
	c.publishSnapshot()
	return cur
}

func (c *Controller) publishSnapshot() {
	s := c.svc.Snapshot()
	rng := c.svc.TargetRange()
	dto := snapshotDTO{
		DeviceID:             c.cfg.DeviceID,
		Unit:                 c.svc.Unit().String(),
		CurrentTemperature:   s.CurrentTemperature,
		TargetTemperature:    s.TargetTemperature,
		TargetTemperatureMin: rng.Min,
		TargetTemperatureMax: rng.Max,
		CurrentHeatingState:  s.CurrentHeatingState.String(),
		TargetHeatingState:   s.TargetHeatingState.String(),
		StatusCode:           int(s.StatusCode),
		Status:               s.StatusCode.String(),
	}
	if !s.UpdatedAt.IsZero() {
		dto.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	b, _ := json.Marshal(dto)
	c.client.Publish(c.topic("snapshot"), c.cfg.QoS, c.cfg.RetainSnapshot, b)
}

type snapshotDTO struct {
	DeviceID             string  `json:"device_id"`
	Unit                 string  `json:"unit"`
	CurrentTemperature   float64 `json:"current_temperature"`
	TargetTemperature    float64 `json:"target_temperature"`
	TargetTemperatureMin float64 `json:"target_temperature_min"`
	TargetTemperatureMax float64 `json:"target_temperature_max"`
	CurrentHeatingState  string  `json:"current_heating_state"`
	TargetHeatingState   string  `json:"target_heating_state"`
	StatusCode           int     `json:"status_code"`
	Status               string  `json:"status"`
	UpdatedAt            string  `json:"updated_at,omitempty"`
}

// Command payload format: {"value": ...}
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <base>/set/<field>
	t := msg.Topic()
	prefix := c.topic("set/")
	if !strings.HasPrefix(t, prefix) {
		return
	}
	field := strings.TrimPrefix(t, prefix)

	payload := msg.Payload()
	ctx := context.Background()

	switch field {
	case "target_temperature":
		v, err := decodeValueStrict[float64](payload)
		if err != nil {
			c.log.Warnw("invalid payload", "field", field, "error", err)
			return
		}
		rng := c.svc.TargetRange()
		if v < rng.Min || v > rng.Max {
			c.log.Warnw("target temperature out of range", "value", v, "min", rng.Min, "max", rng.Max)
			return
		}
		if err := c.svc.SetTargetTemperature(ctx, v); err != nil {
			c.log.Warnw("set target temperature", "error", err)
		}

	case "target_heating_state":
		s, err := decodeValueStrict[string](payload)
		if err != nil {
			c.log.Warnw("invalid payload", "field", field, "error", err)
			return
		}
		h, err := sauna.ParseHeatingState(s)
		if err != nil {
			c.log.Warnw("invalid heating state", "value", s)
			return
		}
		if err := c.svc.SetTargetHeatingState(ctx, h); err != nil {
			c.log.Warnw("set target heating state", "error", err)
		}

	case "refresh":
		if c.svc.Refresh(ctx) && c.client != nil {
			c.publishSnapshot()
		}

	default:
		c.log.Debugw("unknown field", "topic", t)
	}
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.BaseTopic, "/") + "/" + suffix
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}

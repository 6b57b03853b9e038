package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/Agrid-Dev/huumbridge/internal/bridge"
	"github.com/Agrid-Dev/huumbridge/internal/huum"
	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

const EnvPrefix = "HUUM_"

type Config struct {
	Username        string `koanf:"username"`
	Password        string `koanf:"password"`
	TemperatureUnit string `koanf:"temperatureUnit"` // "C" | "F"
	PollInterval    int    `koanf:"pollInterval"`    // seconds

	DeviceID string `koanf:"device_id"`
	Name     string `koanf:"name"`

	API         APIConfig     `koanf:"api"`
	HomeKit     HomeKitConfig `koanf:"homekit"`
	Controllers struct {
		HTTP   HTTPConfig   `koanf:"http"`
		MQTT   MQTTConfig   `koanf:"mqtt"`
		MODBUS ModbusConfig `koanf:"modbus"`
	} `koanf:"controllers"`
	Logging LoggingConfig `koanf:"logging"`
}

type APIConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
	// Simulate replaces the cloud API with a local heater model served on
	// SimulateAddr; the client talks to it instead of BaseURL.
	Simulate     bool   `koanf:"simulate"`
	SimulateAddr string `koanf:"simulate_addr"`
}

type HomeKitConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Pin      string `koanf:"pin"`
	StoreDir string `koanf:"store_dir"`
	Addr     string `koanf:"addr"`
}

type HTTPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	Metrics bool   `koanf:"metrics"`
}

type MQTTConfig struct {
	Enabled         bool          `koanf:"enabled"`
	BrokerURL       string        `koanf:"broker_url"`
	ClientID        string        `koanf:"client_id"`
	BaseTopic       string        `koanf:"base_topic"`
	QoS             byte          `koanf:"qos"`
	RetainSnapshot  bool          `koanf:"retain_snapshot"`
	PublishInterval time.Duration `koanf:"publish_interval"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
}

type ModbusConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	UnitID  byte   `koanf:"unit_id"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Err.Error() }

func (e *ConfigurationError) Unwrap() error { return e.Err }

func Default() Config {
	var cfg Config
	cfg.TemperatureUnit = sauna.DefaultUnit.String()
	cfg.PollInterval = int(bridge.DefaultPollInterval / time.Second)
	cfg.DeviceID = "huum-sauna"
	cfg.Name = "Huum Sauna"
	cfg.API.BaseURL = huum.DefaultBaseURL
	cfg.API.Timeout = huum.DefaultTimeout
	cfg.API.SimulateAddr = "127.0.0.1:8089"
	cfg.HomeKit.Enabled = true
	cfg.HomeKit.Pin = "00102003"
	cfg.HomeKit.StoreDir = "./db"
	cfg.Controllers.HTTP.Addr = ":8080"
	cfg.Controllers.HTTP.Metrics = true
	cfg.Controllers.MQTT.PublishInterval = 1 * time.Second
	cfg.Controllers.MODBUS.Addr = "127.0.0.1:1502"
	cfg.Controllers.MODBUS.UnitID = 1
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig layers defaults, the optional config file and HUUM_* environment
// variables, in that order. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			parser, err := parserFor(path)
			if err != nil {
				return Config{}, err
			}
			if err := k.Load(file.Provider(path), parser); err != nil {
				return Config{}, fmt.Errorf("load config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("stat config: %w", err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(key, EnvPrefix)), value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}
}

// camelKeys are the top-level options whose names are not snake_case.
var camelKeys = map[string]string{
	"temperature_unit": "temperatureUnit",
	"poll_interval":    "pollInterval",
}

var sections = map[string]bool{
	"api":     true,
	"homekit": true,
	"logging": true,
}

// envKeyTransform maps an env var name (prefix already removed) to a koanf
// key path: CONTROLLERS_HTTP_ADDR -> controllers.http.addr,
// HOMEKIT_STORE_DIR -> homekit.store_dir, POLL_INTERVAL -> pollInterval.
func envKeyTransform(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return ""
	}

	if strings.HasPrefix(key, "controllers_") {
		parts := strings.SplitN(key, "_", 3)
		if len(parts) < 3 {
			return key
		}
		return parts[0] + "." + parts[1] + "." + parts[2]
	}

	if section, rest, ok := strings.Cut(key, "_"); ok && sections[section] {
		return section + "." + rest
	}

	if camel, ok := camelKeys[key]; ok {
		return camel
	}
	return key
}

func (c Config) Unit() (sauna.Unit, error) {
	return sauna.ParseUnit(c.TemperatureUnit)
}

func (c Config) PollEvery() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// Validate checks the options the bridge cannot start without.
func (c Config) Validate() error {
	if !c.API.Simulate && (c.Username == "" || c.Password == "") {
		return &ConfigurationError{Err: sauna.ErrMissingCredentials}
	}
	if c.PollInterval <= 0 {
		return &ConfigurationError{Err: sauna.ErrInvalidPollInterval}
	}
	if _, err := c.Unit(); err != nil {
		return &ConfigurationError{Err: err}
	}
	if c.HomeKit.Enabled && len(c.HomeKit.Pin) != 8 {
		return &ConfigurationError{Err: fmt.Errorf("homekit pin must be 8 digits, got %q", c.HomeKit.Pin)}
	}
	return nil
}

func (c Config) HuumConfig() huum.Config {
	return huum.Config{
		BaseURL:  c.API.BaseURL,
		Username: c.Username,
		Password: c.Password,
		Timeout:  c.API.Timeout,
	}
}

// SimulatorConfig points the client at a local simulator. Credentials are
// optional in simulate mode and default to "simulator".
func (c Config) SimulatorConfig(baseURL string) huum.Config {
	hc := c.HuumConfig()
	hc.BaseURL = baseURL
	if hc.Username == "" {
		hc.Username = "simulator"
	}
	if hc.Password == "" {
		hc.Password = "simulator"
	}
	return hc
}

func (c Config) BridgeConfig() (bridge.Config, error) {
	u, err := c.Unit()
	if err != nil {
		return bridge.Config{}, err
	}
	return bridge.Config{Unit: u, PollInterval: c.PollEvery()}, nil
}

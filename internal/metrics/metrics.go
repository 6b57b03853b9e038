package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

// Recorder tracks poll and command outcomes plus the last pushed state.
type Recorder struct {
	fetches        *prometheus.CounterVec
	commands       *prometheus.CounterVec
	currentTemp    prometheus.Gauge
	targetTemp     prometheus.Gauge
	heating        prometheus.Gauge
	statusCode     prometheus.Gauge
	lastSuccess    prometheus.Gauge
	scrapeSuccess  prometheus.Gauge
	commandLatency *prometheus.HistogramVec
}

func New() *Recorder {
	return &Recorder{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huumbridge_status_fetches_total",
			Help: "Status fetches against the HUUM API by result",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huumbridge_commands_total",
			Help: "Start/stop commands sent to the HUUM API by result",
		}, []string{"command", "result"}),
		currentTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huumbridge_current_temperature",
			Help: "Last pushed current temperature (display unit)",
		}),
		targetTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huumbridge_target_temperature",
			Help: "Last pushed target temperature (display unit)",
		}),
		heating: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huumbridge_heating_bool",
			Help: "Heating active (1=heat, 0=off)",
		}),
		statusCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huumbridge_status_code",
			Help: "Last status code reported by the HUUM API",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huumbridge_last_success_timestamp_seconds",
			Help: "Last successful poll timestamp (epoch seconds)",
		}),
		scrapeSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "huumbridge_poll_success",
			Help: "Last poll success (1=ok, 0=error)",
		}),
		commandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "huumbridge_command_duration_seconds",
			Help:    "Round trip of start/stop commands",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
	}
}

// Register adds every metric to reg.
func (r *Recorder) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		r.fetches, r.commands, r.currentTemp, r.targetTemp, r.heating,
		r.statusCode, r.lastSuccess, r.scrapeSuccess, r.commandLatency,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) FetchDone(err error) {
	r.fetches.WithLabelValues(result(err)).Inc()
}

func (r *Recorder) CommandDone(command string, d time.Duration, err error) {
	r.commands.WithLabelValues(command, result(err)).Inc()
	r.commandLatency.WithLabelValues(command).Observe(d.Seconds())
}

// PollDone is called once per poll tick. On failure the state gauges keep
// their previous values, like the exposed state itself.
func (r *Recorder) PollDone(s sauna.State, ok bool) {
	if !ok {
		r.scrapeSuccess.Set(0)
		return
	}
	r.currentTemp.Set(s.CurrentTemperature)
	r.targetTemp.Set(s.TargetTemperature)
	r.heating.Set(boolToFloat(s.CurrentHeatingState == sauna.HeatingOn))
	r.statusCode.Set(float64(s.StatusCode))
	r.scrapeSuccess.Set(1)
	r.lastSuccess.Set(float64(s.UpdatedAt.Unix()))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}

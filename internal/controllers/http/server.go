package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Agrid-Dev/huumbridge/internal/ports"
	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

type Server struct {
	svc      ports.SaunaService
	srv      *http.Server
	deviceID string
}

// New returns a runnable server. A nil gatherer disables /metrics.
func New(svc ports.SaunaService, addr string, deviceID string, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	s := &Server{svc: svc, deviceID: deviceID}

	// Read
	mux.HandleFunc("GET /v1", s.handleGet)

	// Write: one endpoint per writable characteristic
	mux.HandleFunc("POST /v1/target_temperature", s.handlePostTargetTemperature)
	mux.HandleFunc("POST /v1/target_heating_state", s.handlePostTargetHeatingState)
	mux.HandleFunc("POST /v1/refresh", s.handlePostRefresh)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- DTOs ----

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
	UpdatedAt            *string `json:"updated_at"`
}

func toDTO(s sauna.State, r sauna.TargetRange, u sauna.Unit) snapshotDTO {
	dto := snapshotDTO{
		Unit:                 u.String(),
		CurrentTemperature:   s.CurrentTemperature,
		TargetTemperature:    s.TargetTemperature,
		TargetTemperatureMin: r.Min,
		TargetTemperatureMax: r.Max,
		CurrentHeatingState:  s.CurrentHeatingState.String(),
		TargetHeatingState:   s.TargetHeatingState.String(),
		StatusCode:           int(s.StatusCode),
		Status:               s.StatusCode.String(),
	}
	if !s.UpdatedAt.IsZero() {
		ts := s.UpdatedAt.UTC().Format(time.RFC3339)
		dto.UpdatedAt = &ts
	}
	return dto
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	s.respondSnapshot(w)
}

func (s *Server) handlePostTargetTemperature(w http.ResponseWriter, r *http.Request) {
	// body: {"value": 185}
	postValue(s, w, r, func(v float64) error {
		rng := s.svc.TargetRange()
		if v < rng.Min || v > rng.Max {
			return sauna.ErrInvalidTemperature
		}
		return s.svc.SetTargetTemperature(r.Context(), v)
	})
}

func (s *Server) handlePostTargetHeatingState(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "heat"}
	postValue(s, w, r, func(v string) error {
		h, err := sauna.ParseHeatingState(v)
		if err != nil {
			return err
		}
		return s.svc.SetTargetHeatingState(r.Context(), h)
	})
}

func (s *Server) handlePostRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Refresh(r.Context()) {
		writeErr(w, http.StatusServiceUnavailable, "refresh failed or already in progress")
		return
	}
	s.respondSnapshot(w)
}

// ---- generic helpers ----
func (s *Server) respondSnapshot(w http.ResponseWriter) {
	dto := toDTO(s.svc.Snapshot(), s.svc.TargetRange(), s.svc.Unit())
	dto.DeviceID = s.deviceID
	writeJSON(w, http.StatusOK, dto)
}

func postValue[T any](s *Server, w http.ResponseWriter, r *http.Request, apply func(T) error) {
	dec := json.NewDecoder(r.Body)
	var req struct {
		Value *T `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'value'")
		return
	}

	if err := apply(*req.Value); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	// Writes are not reflected locally until the next poll.
	s.respondSnapshot(w)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

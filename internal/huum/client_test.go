package huum

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	c, err := New(Config{BaseURL: server.URL + "/action/home", Username: "user", Password: "secret"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func assertAuth(t *testing.T, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	if !ok || user != "user" || pass != "secret" {
		t.Errorf("expected basic auth user/secret, got %q/%q ok=%v", user, pass, ok)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{Username: "user"}); !errors.Is(err, sauna.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := New(Config{Password: "secret"}); !errors.Is(err, sauna.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{Username: "user", Password: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	if c.baseURL.String() != DefaultBaseURL {
		t.Fatalf("expected default base url, got %q", c.baseURL.String())
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Fatalf("expected default timeout, got %v", c.httpClient.Timeout)
	}
}

func TestStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assertAuth(t, r)
		if r.Method != http.MethodGet || r.URL.Path != "/action/home/status" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"temperature":"64","targetTemperature":90,"statusCode":231,"door":true}`)
	})

	s, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	temp, err := s.Temperature.Celsius()
	if err != nil || temp != 64 {
		t.Fatalf("temperature = %v, %v", temp, err)
	}
	target, err := s.TargetTemperature.Celsius()
	if err != nil || target != 90 {
		t.Fatalf("targetTemperature = %v, %v", target, err)
	}
	if s.StatusCode != sauna.StatusHeating {
		t.Fatalf("statusCode = %d", s.StatusCode)
	}
}

func TestStatusUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, "bad credentials")
	})

	_, err := c.Status(context.Background())
	var statusErr HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.Status != http.StatusUnauthorized || statusErr.Body != "bad credentials" {
		t.Fatalf("unexpected error contents: %+v", statusErr)
	}
}

func TestStatusInvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"temperature":`)
	})
	if _, err := c.Status(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestStart(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assertAuth(t, r)
		if r.Method != http.MethodPost || r.URL.Path != "/action/home/start" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("targetTemperature")
		w.WriteHeader(http.StatusOK)
	})

	if err := c.Start(context.Background(), 85); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if gotQuery != "85" {
		t.Fatalf("expected targetTemperature=85, got %q", gotQuery)
	}

	if err := c.Start(context.Background(), 72.5); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if gotQuery != "72.5" {
		t.Fatalf("expected targetTemperature=72.5, got %q", gotQuery)
	}
}

func TestStop(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assertAuth(t, r)
		if r.Method != http.MethodPost || r.URL.Path != "/action/home/stop" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		called = true
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !called {
		t.Fatal("expected stop endpoint to be called")
	}
}

func TestStopServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if err := c.Stop(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestFormatCelsius(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{40, "40"},
		{110, "110"},
		{85.5, "85.5"},
		{62.77777777777778, "62.77777777777778"},
	}
	for _, tt := range tests {
		if got := FormatCelsius(tt.in); got != tt.want {
			t.Fatalf("FormatCelsius(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

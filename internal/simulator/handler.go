package simulator

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Server exposes a Simulator over HTTP so the regular HUUM client can talk to it.
type Server struct {
	ln  net.Listener
	srv *http.Server
}

// NewServer binds addr right away, so a ":0" port is known before Run.
func (s *Simulator) NewServer(addr, username, password string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("simulator listen %s: %w", addr, err)
	}
	return &Server{
		ln: ln,
		srv: &http.Server{
			Handler:           s.Handler(username, password),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// URL is the base URL to hand to the HUUM client.
func (srv *Server) URL() string {
	return "http://" + srv.ln.Addr().String() + "/"
}

// Close releases the listener of a server that was never run.
func (srv *Server) Close() error {
	return srv.ln.Close()
}

// Run serves until ctx is canceled.
func (srv *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := srv.srv.Serve(srv.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler serves the HUUM REST contract (GET status, POST start, POST stop)
// behind basic auth. Mount it at the client's base URL.
func (s *Simulator) Handler(username, password string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		st, err := s.Status(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})

	mux.HandleFunc("POST /start", func(w http.ResponseWriter, r *http.Request) {
		c, err := strconv.ParseFloat(r.URL.Query().Get("targetTemperature"), 64)
		if err != nil {
			http.Error(w, "invalid targetTemperature", http.StatusBadRequest)
			return
		}
		if err := s.Start(r.Context(), c); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeStatus(w, r)
	})

	mux.HandleFunc("POST /stop", func(w http.ResponseWriter, r *http.Request) {
		if err := s.Stop(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		s.writeStatus(w, r)
	})

	return basicAuth(username, password, mux)
}

func (s *Simulator) writeStatus(w http.ResponseWriter, r *http.Request) {
	st, _ := s.Status(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

func basicAuth(username, password string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="huum"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

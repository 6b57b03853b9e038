// Package huum talks to the HUUM cloud API that controls the sauna heater.
package huum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Agrid-Dev/huumbridge/internal/sauna"
)

const (
	DefaultBaseURL = "https://api.huum.eu/action/home/"
	DefaultTimeout = 10 * time.Second
)

type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client issues basic-auth requests against the status, start and stop endpoints.
type Client struct {
	baseURL    *url.URL
	username   string
	password   string
	httpClient *http.Client
}

// HTTPStatusError is returned for any non-2xx response.
type HTTPStatusError struct {
	Status int
	Body   string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("huum api error %d: %s", e.Status, strings.TrimSpace(e.Body))
}

func New(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, sauna.ErrMissingCredentials
	}
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parsing base url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    base,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Status fetches the current device status.
func (c *Client) Status(ctx context.Context) (sauna.Status, error) {
	resp, err := c.do(ctx, http.MethodGet, "status", nil)
	if err != nil {
		return sauna.Status{}, errors.Wrap(err, "fetching status")
	}
	defer resp.Body.Close()

	var status sauna.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return sauna.Status{}, errors.Wrap(err, "decoding status")
	}
	return status, nil
}

// Start turns the heater on with the given Celsius target.
func (c *Client) Start(ctx context.Context, targetCelsius float64) error {
	q := url.Values{}
	q.Set("targetTemperature", FormatCelsius(targetCelsius))
	resp, err := c.do(ctx, http.MethodPost, "start", q)
	if err != nil {
		return errors.Wrap(err, "starting sauna")
	}
	drain(resp)
	return nil
}

// Stop turns the heater off.
func (c *Client) Stop(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "stop", nil)
	if err != nil {
		return errors.Wrap(err, "stopping sauna")
	}
	drain(resp)
	return nil
}

// FormatCelsius renders the query parameter without a trailing ".0" for
// integral values and without rounding otherwise.
func FormatCelsius(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, HTTPStatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

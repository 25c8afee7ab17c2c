package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "calcolumn/internal/log"
	"calcolumn/internal/model"
)

// Client talks to the Home Assistant REST API. It is the Go side of the
// host's callApi primitive: every call is a request against <base>/api/<path>
// authenticated with a long-lived token.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client for the instance at baseURL
// (e.g. "http://homeassistant.local:8123").
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests, custom transports).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hass: %s %s: %s", e.Method, e.Path, e.Status)
}

// CallAPI issues method against /api/<path> and decodes a JSON response into
// out (which may be nil to discard the body).
func (c *Client) CallAPI(ctx context.Context, method, path string, out any) error {
	if c.baseURL == "" {
		return errors.New("hass: base URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/"+strings.TrimLeft(path, "/"), nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, Path: redactQuery(path), Code: resp.StatusCode, Status: resp.Status}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("hass: decode %s: %w", redactQuery(path), err)
	}
	return nil
}

// FetchEvents reads one calendar's events between start and end, given as
// local "YYYY-MM-DDTHH:MM:SS" strings that the host interprets in its own zone.
func (c *Client) FetchEvents(ctx context.Context, entityID, start, end string) ([]model.CalendarEvent, error) {
	q := url.Values{}
	q.Set("start", start)
	q.Set("end", end)
	path := "calendars/" + url.PathEscape(entityID) + "?" + q.Encode()

	appLog.Debug("hass fetch events", "entity", entityID, "start", start, "end", end)

	var events []model.CalendarEvent
	if err := c.CallAPI(ctx, http.MethodGet, path, &events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.CalendarEvent{}
	}
	return events, nil
}

// FetchState reads every entity state and returns a snapshot.
func (c *Client) FetchState(ctx context.Context) (State, error) {
	var entities []Entity
	if err := c.CallAPI(ctx, http.MethodGet, "states", &entities); err != nil {
		return State{}, err
	}
	return NewState(entities...), nil
}

// redactQuery keeps the path but drops the query string for logging.
func redactQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fexdroid/gamelaunchd"
)

// APIClient talks to a running gamelaunchd daemon over its HTTP API.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8749"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Active returns the games currently running under the daemon.
func (c *APIClient) Active() ([]gamelaunchd.ActiveGame, error) {
	var out []gamelaunchd.ActiveGame
	if err := c.getJSON("/games/active", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns the daemon's recent execution records.
func (c *APIClient) History() ([]gamelaunchd.ExecutionRecord, error) {
	var out []gamelaunchd.ExecutionRecord
	if err := c.getJSON("/history", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Logs returns the daemon's aggregated launch log lines.
func (c *APIClient) Logs() ([]string, error) {
	var out []string
	if err := c.getJSON("/logs", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Terminate asks the daemon to SIGTERM a running game.
func (c *APIClient) Terminate(id string) error {
	return c.post("/games/" + id + "/terminate")
}

// Kill asks the daemon to SIGKILL a running game.
func (c *APIClient) Kill(id string) error {
	return c.post("/games/" + id + "/kill")
}

func (c *APIClient) getJSON(path string, out interface{}) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *APIClient) post(path string) error {
	resp, err := c.client.Post(c.baseURL+path, "application/json", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	return nil
}

func (c *APIClient) apiError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("API error: status %d", resp.StatusCode)
	}
	return fmt.Errorf("API error: %s", body.Error)
}

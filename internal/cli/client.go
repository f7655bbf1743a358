package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin JSON client for the lobby HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is a non-2xx answer carrying the server's error code.
type APIError struct {
	Status int
	Code   string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Code, e.Status)
}

func (c *Client) Get(path string, result any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
			DB    string `json:"db"`
		}
		if json.Unmarshal(body, &payload) == nil {
			apiErr.Code = payload.Error
			if apiErr.Code == "" && payload.DB != "" {
				apiErr.Code = "db_" + payload.DB
			}
		}
		return apiErr
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func (c *Client) Health() (Health, error) {
	var h Health
	err := c.Get("/healthz", &h)
	return h, err
}

func (c *Client) Rooms() ([]RoomSummary, error) {
	var out struct {
		Items []RoomSummary `json:"items"`
	}
	err := c.Get("/api/rooms", &out)
	return out.Items, err
}

func (c *Client) Room(id string) (RoomDetail, error) {
	var out RoomDetail
	err := c.Get("/api/rooms/"+url.PathEscape(id), &out)
	return out, err
}

func (c *Client) Presence() ([]OnlineUser, error) {
	var out struct {
		Items []OnlineUser `json:"items"`
	}
	err := c.Get("/api/presence", &out)
	return out.Items, err
}

// Package transport is the typed client for the upstream NauticalFlow API.
// Every network call the service makes goes through here.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nauticalflow/vessel-manager/internal/models"
	"github.com/rs/zerolog/log"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	onRequest  func(method string, elapsed time.Duration)
}

// NewClient builds a client for the given API base URL. The token, when
// set, is sent as a bearer credential on every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// OnRequest registers a callback observing every upstream call's duration.
// Used to feed metrics without the client importing the collector.
func (c *Client) OnRequest(fn func(method string, elapsed time.Duration)) {
	c.onRequest = fn
}

// ListCruiseShips fetches the full ship catalog.
func (c *Client) ListCruiseShips(ctx context.Context) ([]models.CruiseShip, error) {
	body, err := c.do(ctx, http.MethodGet, "/cruise-ships", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching cruise ships: %w", err)
	}

	var ships []models.CruiseShip
	if err := json.Unmarshal(body, &ships); err != nil {
		return nil, fmt.Errorf("parsing cruise ships: %w", err)
	}
	log.Debug().Int("count", len(ships)).Msg("fetched cruise ships")
	return ships, nil
}

// ListFuelTypes fetches the fuel type catalog used for import validation.
func (c *Client) ListFuelTypes(ctx context.Context) ([]models.FuelType, error) {
	body, err := c.do(ctx, http.MethodGet, "/fuel-types", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching fuel types: %w", err)
	}

	var fuelTypes []models.FuelType
	if err := json.Unmarshal(body, &fuelTypes); err != nil {
		return nil, fmt.Errorf("parsing fuel types: %w", err)
	}
	log.Debug().Int("count", len(fuelTypes)).Msg("fetched fuel types")
	return fuelTypes, nil
}

// CreateCruiseShip registers a new ship, curve attached.
func (c *Client) CreateCruiseShip(ctx context.Context, payload *models.ShipPayload) error {
	if _, err := c.do(ctx, http.MethodPost, "/cruise-ships", payload); err != nil {
		return fmt.Errorf("creating cruise ship %q: %w", payload.Name, err)
	}
	return nil
}

// UpdateCruiseShip overwrites an existing ship record.
func (c *Client) UpdateCruiseShip(ctx context.Context, id int, payload *models.ShipPayload) error {
	if _, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/cruise-ships/%d", id), payload); err != nil {
		return fmt.Errorf("updating cruise ship %d: %w", id, err)
	}
	return nil
}

// DeleteCruiseShip removes a ship record.
func (c *Client) DeleteCruiseShip(ctx context.Context, id int) error {
	if _, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/cruise-ships/%d", id), nil); err != nil {
		return fmt.Errorf("deleting cruise ship %d: %w", id, err)
	}
	return nil
}

// --- HTTP helpers ---

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if c.onRequest != nil {
		start := time.Now()
		defer func() { c.onRequest(method, time.Since(start)) }()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "VesselManager/1.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10)) // 1KB for error messages
		limit := len(body)
		if limit > 200 {
			limit = 200
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body[:limit]))
	}

	return io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10MB limit
}

// Package inspectclient is a Go client for the container inspection API. It
// also carries Session, which drives the inspection wizard the way the mobile
// app does.
package inspectclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/workflow"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// send performs the request and decodes a JSON answer into out when out is
// not nil.
func (c *Client) send(req *http.Request, out any) error {
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var envelope struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
			apiErr.Message = envelope.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

type LoginResult struct {
	Token            string      `json:"token"`
	User             models.User `json:"user"`
	PinSetupRequired bool        `json:"pinSetupRequired"`
}

// Login signs in with username and password and keeps the token.
func (c *Client) Login(ctx context.Context, username, password, deviceID string) (*LoginResult, error) {
	var res LoginResult
	in := map[string]string{"username": username, "password": password, "deviceId": deviceID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", in, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// LoginPIN signs in with the PIN bound to deviceID and keeps the token.
func (c *Client) LoginPIN(ctx context.Context, deviceID, pin string) (*LoginResult, error) {
	var res LoginResult
	in := map[string]string{"deviceId": deviceID, "pin": pin}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login-pin", in, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

func (c *Client) SetupPIN(ctx context.Context, pin, deviceID string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/setup-pin", map[string]string{"pin": pin, "deviceId": deviceID}, nil)
}

type CreateTripSegmentInput struct {
	ContainerNumber string `json:"containerNumber"`
	ContainerSize   string `json:"containerSize,omitempty"`
	ContainerType   string `json:"containerType,omitempty"`
}

func (c *Client) CreateTripSegment(ctx context.Context, in CreateTripSegmentInput) (*models.TripSegment, error) {
	var t models.TripSegment
	if err := c.doJSON(ctx, http.MethodPost, "/api/trip-segments", in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) GetTripSegment(ctx context.Context, id string) (*models.TripSegment, error) {
	var t models.TripSegment
	if err := c.doJSON(ctx, http.MethodGet, "/api/trip-segments/"+id, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) GetDamageStatus(ctx context.Context, id string) (*models.DamageStatus, error) {
	var st models.DamageStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/trip-segments/"+id+"/damage-status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) UpdateDamageStatus(ctx context.Context, id string, loc models.DamageLocation, hasDamage bool, notes string) (*models.DamageStatus, error) {
	in := map[string]any{"tripSegmentId": id, "location": loc, "hasDamage": hasDamage, "notes": notes}
	var st models.DamageStatus
	if err := c.doJSON(ctx, http.MethodPost, "/api/update-damage-status", in, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SetStep saves the wizard position. The server answers 409 for moves the
// wizard could not have made.
func (c *Client) SetStep(ctx context.Context, id string, step workflow.Step) (*models.TripSegment, error) {
	var res struct {
		TripSegment models.TripSegment `json:"tripSegment"`
	}
	if err := c.doJSON(ctx, http.MethodPut, "/api/trip-segments/"+id+"/step", map[string]workflow.Step{"step": step}, &res); err != nil {
		return nil, err
	}
	return &res.TripSegment, nil
}

type DriverDetailsInput struct {
	Name          string `json:"name"`
	LicenseNumber string `json:"licenseNumber"`
	Phone         string `json:"phone,omitempty"`
	Company       string `json:"company,omitempty"`
	TruckNumber   string `json:"truckNumber,omitempty"`
	TrailerNumber string `json:"trailerNumber,omitempty"`
}

// SubmitDriverDetails completes the trip segment.
func (c *Client) SubmitDriverDetails(ctx context.Context, id string, in DriverDetailsInput) (*models.TripSegment, error) {
	var t models.TripSegment
	if err := c.doJSON(ctx, http.MethodPut, "/api/trip-segments/"+id+"/driver-details", in, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

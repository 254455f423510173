package bluelink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials are the vendor account credentials used to open a
// session.
type Credentials struct {
	Username string
	Password string
	PIN      string
}

// Vehicle is a vehicle registered to the account.
type Vehicle struct {
	ID       string `json:"vehicle_id"`
	VIN      string `json:"vin"`
	Nickname string `json:"nickname"`
	Model    string `json:"model"`
}

// Client is a REST client for the Bluelink vehicle API. It holds the
// session token; refresh is driven externally so that concurrent
// callers share a single re-authentication.
type Client struct {
	baseURL     string
	credentials Credentials
	httpClient  *http.Client
	logger      *log.Logger

	mu          sync.RWMutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient constructs a Bluelink client. No session is opened until
// Authenticate is called.
func NewClient(baseURL string, credentials Credentials, logger *log.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("bluelink: empty base url")
	}
	if credentials.Username == "" || credentials.Password == "" {
		return nil, errors.New("bluelink: missing credentials")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: credentials,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}, nil
}

// Authenticate opens a new session and stores the access token. The
// token's expiry is read from its exp claim when present.
func (c *Client) Authenticate(ctx context.Context) error {
	body := map[string]string{
		"username": c.credentials.Username,
		"password": c.credentials.Password,
		"pin":      c.credentials.PIN,
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/token", body, &resp); err != nil {
		return fmt.Errorf("bluelink: authenticate: %w", err)
	}
	if resp.AccessToken == "" {
		return errors.New("bluelink: authenticate: empty access token")
	}

	expiry := tokenExpiry(resp.AccessToken)

	c.mu.Lock()
	c.accessToken = resp.AccessToken
	c.tokenExpiry = expiry
	c.mu.Unlock()

	if expiry.IsZero() {
		c.logger.Printf("session opened, token carries no expiry claim")
	} else {
		c.logger.Printf("session opened, token valid until %s", expiry.Format(time.RFC3339))
	}
	return nil
}

// TokenExpiry returns the current token's expiry, zero when unknown.
func (c *Client) TokenExpiry() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokenExpiry
}

// tokenExpiry reads the exp claim without verifying the signature.
// The vendor signs its own tokens; we only introspect lifetime.
func tokenExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// ListVehicles returns the vehicles registered to the account.
func (c *Client) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	var resp struct {
		Vehicles []Vehicle `json:"vehicles"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/vehicles", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Vehicles, nil
}

// SendCommand submits a remote command and returns the vendor-issued
// action id.
func (c *Client) SendCommand(ctx context.Context, vehicleID, command string, parameters any) (string, error) {
	body := map[string]any{"command": command}
	if parameters != nil {
		body["parameters"] = parameters
	}
	var resp struct {
		ActionID string `json:"action_id"`
	}
	path := fmt.Sprintf("/api/v1/vehicles/%s/commands", vehicleID)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return resp.ActionID, nil
}

// ActionStatus returns the vendor's raw status string for an action.
func (c *Client) ActionStatus(ctx context.Context, vehicleID, actionID string) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/api/v1/vehicles/%s/commands/%s", vehicleID, actionID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// VehicleStatus fetches the cached vehicle state document.
func (c *Client) VehicleStatus(ctx context.Context, vehicleID string) (json.RawMessage, error) {
	var resp json.RawMessage
	path := fmt.Sprintf("/api/v1/vehicles/%s/status", vehicleID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RequestStatusRefresh asks the vehicle to upload fresh state.
func (c *Client) RequestStatusRefresh(ctx context.Context, vehicleID string) error {
	path := fmt.Sprintf("/api/v1/vehicles/%s/status/refresh", vehicleID)
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.RLock()
	token := c.accessToken
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

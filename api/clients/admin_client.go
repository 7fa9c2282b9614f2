package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/sip-provisioning-backend/api"
	"github.com/ruteri/sip-provisioning-backend/interfaces"
)

// APIError is a non-success response of the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with code %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// AdminClient provides methods for interacting with the admin API and for
// fetching provisioning artifacts the way a phone would.
type AdminClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAdminClient creates a new admin client.
//
// Parameters:
//   - baseURL: The base URL of the server (e.g., "http://localhost:8080")
//   - timeout: Request timeout duration (optional, default 30 seconds)
func NewAdminClient(baseURL string, timeout ...time.Duration) *AdminClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &AdminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// ListDevices returns every device, passwords redacted.
func (c *AdminClient) ListDevices(ctx context.Context) ([]interfaces.Device, error) {
	var devices []interfaces.Device
	if err := c.doJSON(ctx, http.MethodGet, "/devices", nil, &devices); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// CreateDevice creates or replaces a device.
func (c *AdminClient) CreateDevice(ctx context.Context, fields interfaces.NewDevice) (interfaces.Device, error) {
	var device interfaces.Device
	if err := c.doJSON(ctx, http.MethodPost, "/devices", fields, &device); err != nil {
		return interfaces.Device{}, fmt.Errorf("create device: %w", err)
	}
	return device, nil
}

// UpdateDevice applies a partial update to the device identified by mac.
func (c *AdminClient) UpdateDevice(ctx context.Context, mac string, update interfaces.DeviceUpdate) (interfaces.Device, error) {
	req := api.UpdateDeviceRequest{MAC: mac, DeviceUpdate: update}

	var device interfaces.Device
	if err := c.doJSON(ctx, http.MethodPut, "/devices", req, &device); err != nil {
		return interfaces.Device{}, fmt.Errorf("update device: %w", err)
	}
	return device, nil
}

// DeleteDevice removes the device identified by mac.
func (c *AdminClient) DeleteDevice(ctx context.Context, mac string) error {
	path := "/devices?" + url.Values{"mac": {mac}}.Encode()

	var resp api.SuccessResponse
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

// GetSettings returns the shared settings.
func (c *AdminClient) GetSettings(ctx context.Context) (interfaces.Settings, error) {
	var settings interfaces.Settings
	if err := c.doJSON(ctx, http.MethodGet, "/settings", nil, &settings); err != nil {
		return interfaces.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings merges update into the shared settings.
func (c *AdminClient) UpdateSettings(ctx context.Context, update interfaces.SettingsUpdate) (interfaces.Settings, error) {
	var settings interfaces.Settings
	if err := c.doJSON(ctx, http.MethodPut, "/settings", update, &settings); err != nil {
		return interfaces.Settings{}, fmt.Errorf("update settings: %w", err)
	}
	return settings, nil
}

// FetchArtifact downloads a provisioning document. An empty filename fetches
// the master manifest. Fetching auto-registers unknown devices.
func (c *AdminClient) FetchArtifact(ctx context.Context, mac, filename string) ([]byte, error) {
	path := "/provision/" + url.PathEscape(mac)
	if filename != "" {
		path += "/" + url.PathEscape(filename)
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch artifact: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return body, nil
}

func (c *AdminClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reqJSON, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *AdminClient) doJSON(ctx context.Context, method, path string, body, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		var errResp api.ErrorResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

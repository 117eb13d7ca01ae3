// pkg/siteclient/client.go
// Client SDK for the site model API
package siteclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client represents the site model API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Kind       string `json:"kind"`
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("API error: %d %s - %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Message)
}

// HealthStatus represents the service health
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

// CloudIotConfig is the registry binding of a site.
type CloudIotConfig struct {
	RegistryID  string `json:"registry_id"`
	CloudRegion string `json:"cloud_region"`
	UpdateTopic string `json:"update_topic,omitempty"`
}

// Metadata is the subset of a device's metadata the API returns.
type Metadata struct {
	Version     string     `json:"version,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Description string     `json:"description,omitempty"`
	Cloud       *struct {
		AuthType  string `json:"auth_type,omitempty"`
		DeviceKey bool   `json:"device_key,omitempty"`
	} `json:"cloud,omitempty"`
	Gateway *struct {
		GatewayID string   `json:"gateway_id,omitempty"`
		ProxyIDs  []string `json:"proxy_ids,omitempty"`
	} `json:"gateway,omitempty"`
}

// GatewayID returns the gateway the device is proxied through, or "".
func (m *Metadata) GatewayID() string {
	if m == nil || m.Gateway == nil {
		return ""
	}
	return m.Gateway.GatewayID
}

// Envelope carries the routing attributes of a device message.
type Envelope struct {
	ProjectID              string `json:"projectId,omitempty"`
	DeviceRegistryID       string `json:"deviceRegistryId,omitempty"`
	DeviceRegistryLocation string `json:"deviceRegistryLocation,omitempty"`
	DeviceID               string `json:"deviceId,omitempty"`
	DeviceNumID            string `json:"deviceNumId,omitempty"`
	SubFolder              string `json:"subFolder,omitempty"`
	SubType                string `json:"subType,omitempty"`
}

// EndpointConfiguration holds the parameters needed to open a device session.
type EndpointConfiguration struct {
	ClientID string `json:"client_id"`
	Hostname string `json:"hostname"`
}

// ClientInfo is a client id split into its parts.
type ClientInfo struct {
	ProjectID   string `json:"project_id"`
	CloudRegion string `json:"cloud_region"`
	RegistryID  string `json:"registry_id"`
	DeviceID    string `json:"device_id"`
}

// Site summarises the served site model.
type Site struct {
	SitePath       string          `json:"site_path"`
	CloudIotConfig *CloudIotConfig `json:"cloud_iot_config"`
	DeviceCount    int             `json:"device_count"`
}

// Device is a device and its metadata.
type Device struct {
	DeviceID string    `json:"device_id"`
	Metadata *Metadata `json:"metadata"`
}

// KeyFile is the resolved credential of a device.
type KeyFile struct {
	DeviceID  string `json:"device_id"`
	KeyDevice string `json:"key_device"`
	AuthType  string `json:"auth_type"`
	KeyFile   string `json:"key_file"`
}

// RegisteredDevice is a row of the registry mirror.
type RegisteredDevice struct {
	ID          uint      `json:"id"`
	RegistryID  string    `json:"registry_id"`
	DeviceID    string    `json:"device_id"`
	CloudRegion string    `json:"cloud_region"`
	AuthType    string    `json:"auth_type"`
	GatewayID   string    `json:"gateway_id"`
	KeyFile     string    `json:"key_file"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// do performs an HTTP request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health checks the service health
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var health HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Site returns the served site's config.
func (c *Client) Site(ctx context.Context) (*Site, error) {
	var site Site
	if err := c.do(ctx, http.MethodGet, "/api/v1/site", nil, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// ListDevices lists the site's device ids.
func (c *Client) ListDevices(ctx context.Context) ([]string, error) {
	var result struct {
		Devices []string `json:"devices"`
		Count   int      `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/devices", nil, &result); err != nil {
		return nil, err
	}
	return result.Devices, nil
}

// GetDevice retrieves a device's metadata.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	var device Device
	if err := c.do(ctx, http.MethodGet, "/api/v1/devices/"+url.PathEscape(deviceID), nil, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// KeyFile resolves the key a device authenticates with.
func (c *Client) KeyFile(ctx context.Context, deviceID string) (*KeyFile, error) {
	var key KeyFile
	path := "/api/v1/devices/" + url.PathEscape(deviceID) + "/keyfile"
	if err := c.do(ctx, http.MethodGet, path, nil, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// Endpoint builds a device's endpoint. An empty projectID uses the server's default.
func (c *Client) Endpoint(ctx context.Context, deviceID, projectID string) (*EndpointConfiguration, error) {
	path := "/api/v1/devices/" + url.PathEscape(deviceID) + "/endpoint"
	if projectID != "" {
		path += "?project_id=" + url.QueryEscape(projectID)
	}

	var endpoint EndpointConfiguration
	if err := c.do(ctx, http.MethodGet, path, nil, &endpoint); err != nil {
		return nil, err
	}
	return &endpoint, nil
}

// ParseClientID asks the server to split a client id.
func (c *Client) ParseClientID(ctx context.Context, clientID string) (*ClientInfo, error) {
	body := map[string]string{"client_id": clientID}
	var info ClientInfo
	if err := c.do(ctx, http.MethodPost, "/api/v1/clientid/parse", body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// EndpointFromEnvelope builds the endpoint of the device named by envelope.
func (c *Client) EndpointFromEnvelope(ctx context.Context, envelope *Envelope) (*EndpointConfiguration, error) {
	var endpoint EndpointConfiguration
	if err := c.do(ctx, http.MethodPost, "/api/v1/endpoint", envelope, &endpoint); err != nil {
		return nil, err
	}
	return &endpoint, nil
}

// ListRegisteredDevices lists the registry mirror rows of registryID, or of the
// served site's registry when registryID is empty.
func (c *Client) ListRegisteredDevices(ctx context.Context, registryID string) ([]RegisteredDevice, error) {
	path := "/api/v1/registry/devices"
	if registryID != "" {
		path += "?registry_id=" + url.QueryEscape(registryID)
	}

	var result struct {
		RegistryID string             `json:"registry_id"`
		Devices    []RegisteredDevice `json:"devices"`
		Count      int                `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Devices, nil
}

// GetRegisteredDevice retrieves the registry mirror row of a site device.
func (c *Client) GetRegisteredDevice(ctx context.Context, deviceID string) (*RegisteredDevice, error) {
	var device RegisteredDevice
	if err := c.do(ctx, http.MethodGet, "/api/v1/registry/devices/"+url.PathEscape(deviceID), nil, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

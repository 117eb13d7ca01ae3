package sitemodel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AuthType is the credential algorithm a device authenticates with.
type AuthType string

const (
	AuthTypeES256     AuthType = "ES256"
	AuthTypeES256X509 AuthType = "ES256_X509"
	AuthTypeRS256     AuthType = "RS256"
	AuthTypeRS256X509 AuthType = "RS256_X509"
)

var knownAuthTypes = map[AuthType]struct{}{
	AuthTypeES256:     {},
	AuthTypeES256X509: {},
	AuthTypeRS256:     {},
	AuthTypeRS256X509: {},
}

// IsRSA reports whether the auth type belongs to the RSA family.
func (a AuthType) IsRSA() bool {
	return strings.HasPrefix(string(a), "RS")
}

// KeyPrefix is the file name prefix of the device's private key.
func (a AuthType) KeyPrefix() string {
	if a.IsRSA() {
		return "rsa"
	}
	return "ec"
}

// UnmarshalJSON rejects auth types outside the known set.
func (a *AuthType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if _, ok := knownAuthTypes[AuthType(s)]; !ok {
		return fmt.Errorf("unknown auth_type %q", s)
	}
	*a = AuthType(s)
	return nil
}

// timestampLayouts are the ISO 8601 forms accepted in model files. Parsing
// also accepts fractional seconds after the seconds field.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp is an ISO 8601 instant. Offsets may be written as Z, +00:00,
// +0000 or +00.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses s in any of the accepted layouts.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

// UnmarshalJSON accepts any of the layouts in timestampLayouts.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON writes RFC 3339 with nanoseconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// MarshalYAML writes the same form as MarshalJSON.
func (t Timestamp) MarshalYAML() (interface{}, error) {
	return t.Format(time.RFC3339Nano), nil
}

// CloudIotConfig is the site-level registry binding read from cloud_iot_config.json.
type CloudIotConfig struct {
	RegistryID  string `json:"registry_id" yaml:"registry_id"`
	CloudRegion string `json:"cloud_region" yaml:"cloud_region"`
	UpdateTopic string `json:"update_topic,omitempty" yaml:"update_topic,omitempty"`
}

// Metadata is the per-device model read from devices/{id}/metadata.json.
// Members not listed here are ignored.
type Metadata struct {
	Version     string        `json:"version,omitempty" yaml:"version,omitempty"`
	Timestamp   *Timestamp    `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Cloud       *CloudModel   `json:"cloud,omitempty" yaml:"cloud,omitempty"`
	Gateway     *GatewayModel `json:"gateway,omitempty" yaml:"gateway,omitempty"`
}

// CloudModel holds the device's cloud credentials settings.
type CloudModel struct {
	AuthType  AuthType `json:"auth_type,omitempty" yaml:"auth_type,omitempty"`
	DeviceKey bool     `json:"device_key,omitempty" yaml:"device_key,omitempty"`
}

// GatewayModel links a proxied device to its gateway, or lists a gateway's proxies.
type GatewayModel struct {
	GatewayID string   `json:"gateway_id,omitempty" yaml:"gateway_id,omitempty"`
	ProxyIDs  []string `json:"proxy_ids,omitempty" yaml:"proxy_ids,omitempty"`
}

// GatewayID returns the gateway the device is proxied through, or "".
func (m *Metadata) GatewayID() string {
	if m == nil || m.Gateway == nil {
		return ""
	}
	return m.Gateway.GatewayID
}

// Envelope carries the routing attributes of an inbound device message.
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
	ClientID string `json:"client_id" yaml:"client_id"`
	Hostname string `json:"hostname" yaml:"hostname"`
}

// ClientInfo is a client identifier split into its parts.
type ClientInfo struct {
	ProjectID   string `json:"project_id" yaml:"project_id"`
	CloudRegion string `json:"cloud_region" yaml:"cloud_region"`
	RegistryID  string `json:"registry_id" yaml:"registry_id"`
	DeviceID    string `json:"device_id" yaml:"device_id"`
}

package sitemodel_test

import (
	"encoding/json"
	"errors"
	"testing"

	"example.com/backstage/services/sitemodel/internal/sitemodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeEndpointConfig(t *testing.T) {
	tests := []struct {
		projectID string
		cfg       sitemodel.CloudIotConfig
		deviceID  string
	}{
		{projectID: "bos-platform", cfg: sitemodel.CloudIotConfig{RegistryID: "ZZ-TRI-FECTA", CloudRegion: "us-central1"}, deviceID: "AHU-1"},
		{projectID: "other", cfg: sitemodel.CloudIotConfig{RegistryID: "R", CloudRegion: "asia-east1", UpdateTopic: "t"}, deviceID: "GAT-123"},
		{projectID: "", cfg: sitemodel.CloudIotConfig{}, deviceID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.projectID+"/"+tt.deviceID, func(t *testing.T) {
			endpoint := sitemodel.MakeEndpointConfig(tt.projectID, &tt.cfg, tt.deviceID)
			assert.Equal(t, "mqtt.googleapis.com", endpoint.Hostname)
			assert.Equal(t, sitemodel.MakeClientID(tt.projectID, tt.cfg.CloudRegion, tt.cfg.RegistryID, tt.deviceID), endpoint.ClientID)
		})
	}
}

func TestEndpointConfiguration_JSON(t *testing.T) {
	endpoint := sitemodel.MakeEndpointConfig("p", &sitemodel.CloudIotConfig{RegistryID: "g", CloudRegion: "r"}, "d")
	data, err := json.Marshal(endpoint)
	require.NoError(t, err)
	assert.JSONEq(t, `{"client_id": "projects/p/locations/r/registries/g/devices/d", "hostname": "mqtt.googleapis.com"}`, string(data))
}

func TestEndpointConfigFromEnvelope(t *testing.T) {
	envelope := &sitemodel.Envelope{
		ProjectID:              "bos-platform",
		DeviceRegistryID:       "ZZ-TRI-FECTA",
		DeviceRegistryLocation: "us-central1",
		DeviceID:               "AHU-1",
	}

	endpoint, err := sitemodel.EndpointConfigFromEnvelope(envelope)
	require.NoError(t, err)
	assert.Equal(t, "projects/bos-platform/locations/us-central1/registries/ZZ-TRI-FECTA/devices/AHU-1", endpoint.ClientID)
	assert.Equal(t, sitemodel.DefaultEndpointHostname, endpoint.Hostname)
}

func TestEndpointConfigFromEnvelope_MissingFields(t *testing.T) {
	tests := []struct {
		name      string
		envelope  *sitemodel.Envelope
		wantErr   error
		wantField string
	}{
		{
			name:      "nil envelope",
			envelope:  nil,
			wantErr:   sitemodel.ErrInvalidArgument,
			wantField: "envelope",
		},
		{
			name:      "no registry id",
			envelope:  &sitemodel.Envelope{ProjectID: "p", DeviceRegistryLocation: "r", DeviceID: "d"},
			wantErr:   sitemodel.ErrMissingField,
			wantField: "deviceRegistryId",
		},
		{
			name:      "no registry location",
			envelope:  &sitemodel.Envelope{ProjectID: "p", DeviceRegistryID: "g", DeviceID: "d"},
			wantErr:   sitemodel.ErrMissingField,
			wantField: "deviceRegistryLocation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint, err := sitemodel.EndpointConfigFromEnvelope(tt.envelope)
			assert.Nil(t, endpoint)
			assert.ErrorIs(t, err, tt.wantErr)

			var modelErr *sitemodel.ModelError
			require.True(t, errors.As(err, &modelErr))
			assert.Equal(t, tt.wantField, modelErr.Context)
		})
	}
}

package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testSite(t *testing.T) string {
	t.Helper()
	site := t.TempDir()
	writeFile(t, filepath.Join(site, "cloud_iot_config.json"),
		`{"registry_id": "ZZ-TRI-FECTA", "cloud_region": "us-central1"}`)
	writeFile(t, filepath.Join(site, "devices", "GAT-123", "metadata.json"),
		`{"cloud": {"auth_type": "RS256"}}`)
	writeFile(t, filepath.Join(site, "devices", "AHU-22", "metadata.json"),
		`{"cloud": {"auth_type": "ES256"}, "gateway": {"gateway_id": "GAT-123"}}`)
	return site
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	envelopeFile = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	base := []string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "--log-level", "panic"}
	rootCmd.SetArgs(append(base, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestClientIDMake(t *testing.T) {
	out, err := run(t, "clientid", "make", "bos-platform", "us-central1", "ZZ-TRI-FECTA", "AHU-1")
	require.NoError(t, err)
	assert.Equal(t, "projects/bos-platform/locations/us-central1/registries/ZZ-TRI-FECTA/devices/AHU-1\n", out)
}

func TestClientIDParse_YAML(t *testing.T) {
	out, err := run(t, "-o", "yaml", "clientid", "parse",
		"projects/bos-platform/locations/us-central1/registries/ZZ-TRI-FECTA/devices/AHU-1")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	assert.Equal(t, "ZZ-TRI-FECTA", info["registry_id"])
	assert.Equal(t, "AHU-1", info["device_id"])
}

func TestClientIDParse_Invalid(t *testing.T) {
	_, err := run(t, "-o", "json", "clientid", "parse", "projects/only")
	assert.Error(t, err)
}

func TestDevicesShow_ResolvesGatewayKey(t *testing.T) {
	site := testSite(t)

	out, err := run(t, "-o", "json", "--site", site, "devices")
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.Equal(t, []string{"AHU-22", "GAT-123"}, ids)

	out, err = run(t, "-o", "json", "--site", site, "devices", "show", "AHU-22")
	require.NoError(t, err)
	var view deviceView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "GAT-123", view.KeyDevice)
	assert.Equal(t, "RS256", view.AuthType)
	assert.Equal(t, site+"/devices/GAT-123/rsa_private.pkcs8", view.KeyFile)
}

func TestEndpoint(t *testing.T) {
	site := testSite(t)

	out, err := run(t, "-o", "json", "--site", site, "--project", "bos-platform", "endpoint", "AHU-22")
	require.NoError(t, err)
	var endpoint map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &endpoint))
	assert.Equal(t, "projects/bos-platform/locations/us-central1/registries/ZZ-TRI-FECTA/devices/AHU-22", endpoint["client_id"])
	assert.Equal(t, "mqtt.googleapis.com", endpoint["hostname"])
}

func TestEndpoint_Envelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "envelope.json")
	writeFile(t, path, `{"projectId": "p", "deviceRegistryId": "g", "deviceRegistryLocation": "r", "deviceId": "d"}`)

	out, err := run(t, "-o", "json", "endpoint", "--envelope", path)
	require.NoError(t, err)
	assert.Contains(t, out, "projects/p/locations/r/registries/g/devices/d")
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := run(t, "-o", "xml", "clientid", "make", "p", "r", "g", "d")
	assert.Error(t, err)
}

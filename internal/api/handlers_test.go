package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"example.com/backstage/services/sitemodel/internal/core"
	"example.com/backstage/services/sitemodel/internal/sitemodel"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newRouter(t *testing.T, requestsPerMinute int) (*gin.Engine, string) {
	t.Helper()
	return newRouterWithRegistry(t, requestsPerMinute, nil)
}

func newRouterWithRegistry(t *testing.T, requestsPerMinute int, registry core.Repository) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	site := t.TempDir()
	writeFile(t, filepath.Join(site, "cloud_iot_config.json"),
		`{"registry_id": "ZZ-TRI-FECTA", "cloud_region": "us-central1"}`)
	writeFile(t, filepath.Join(site, "devices", "GAT-123", "metadata.json"),
		`{"cloud": {"auth_type": "RS256"}, "gateway": {"proxy_ids": ["AHU-22"]}}`)
	writeFile(t, filepath.Join(site, "devices", "AHU-22", "metadata.json"),
		`{"cloud": {"auth_type": "ES256"}, "gateway": {"gateway_id": "GAT-123"}}`)

	model := sitemodel.New(site, quietLogger())
	require.NoError(t, model.Initialize())

	router := gin.New()
	SetupRoutes(router, NewAPIHandlers(model, "bos-platform", registry), requestsPerMinute, quietLogger())
	return router, site
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	router, _ := newRouter(t, 0)
	w := do(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestGetSite(t *testing.T) {
	router, site := newRouter(t, 0)
	w := do(router, http.MethodGet, "/api/v1/site", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, site, body["site_path"])
	assert.EqualValues(t, 2, body["device_count"])
	assert.Equal(t, "ZZ-TRI-FECTA", body["cloud_iot_config"].(map[string]interface{})["registry_id"])
}

func TestListDevices(t *testing.T) {
	router, _ := newRouter(t, 0)
	w := do(router, http.MethodGet, "/api/v1/devices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"AHU-22", "GAT-123"}, decode(t, w)["devices"])
}

func TestGetDevice(t *testing.T) {
	router, _ := newRouter(t, 0)

	w := do(router, http.MethodGet, "/api/v1/devices/AHU-22", "")
	require.Equal(t, http.StatusOK, w.Code)
	md := decode(t, w)["metadata"].(map[string]interface{})
	assert.Equal(t, "GAT-123", md["gateway"].(map[string]interface{})["gateway_id"])

	w = do(router, http.MethodGet, "/api/v1/devices/NOPE-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "UNKNOWN_DEVICE", decode(t, w)["kind"])
}

func TestGetDeviceKeyFile_FollowsGateway(t *testing.T) {
	router, site := newRouter(t, 0)
	w := do(router, http.MethodGet, "/api/v1/devices/AHU-22/keyfile", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "GAT-123", body["key_device"])
	assert.Equal(t, "RS256", body["auth_type"])
	assert.Equal(t, site+"/devices/GAT-123/rsa_private.pkcs8", body["key_file"])
}

func TestGetDeviceEndpoint(t *testing.T) {
	router, _ := newRouter(t, 0)

	w := do(router, http.MethodGet, "/api/v1/devices/AHU-22/endpoint", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "projects/bos-platform/locations/us-central1/registries/ZZ-TRI-FECTA/devices/AHU-22", body["client_id"])
	assert.Equal(t, sitemodel.DefaultEndpointHostname, body["hostname"])

	w = do(router, http.MethodGet, "/api/v1/devices/AHU-22/endpoint?project_id=other", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["client_id"], "projects/other/")
}

func TestParseClientID(t *testing.T) {
	router, _ := newRouter(t, 0)

	w := do(router, http.MethodPost, "/api/v1/clientid/parse",
		`{"client_id": "projects/p/locations/r/registries/g/devices/d"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{
		"project_id":   "p",
		"cloud_region": "r",
		"registry_id":  "g",
		"device_id":    "d",
	}, decode(t, w))

	w = do(router, http.MethodPost, "/api/v1/clientid/parse", `{"client_id": "projects/p/devices/d"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", decode(t, w)["kind"])

	w = do(router, http.MethodPost, "/api/v1/clientid/parse", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEndpointFromEnvelope(t *testing.T) {
	router, _ := newRouter(t, 0)

	w := do(router, http.MethodPost, "/api/v1/endpoint",
		`{"projectId": "p", "deviceRegistryId": "g", "deviceRegistryLocation": "r", "deviceId": "d"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "projects/p/locations/r/registries/g/devices/d", decode(t, w)["client_id"])

	w = do(router, http.MethodPost, "/api/v1/endpoint", `{"projectId": "p", "deviceId": "d"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "MISSING_FIELD", body["kind"])
	assert.Contains(t, body["error"], "deviceRegistryId")
}

func TestNotInitializedSite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	model := sitemodel.New(t.TempDir(), quietLogger())
	SetupRoutes(router, NewAPIHandlers(model, "", nil), 0, quietLogger())

	w := do(router, http.MethodGet, "/api/v1/devices", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimiter(t *testing.T) {
	router, _ := newRouter(t, 2)

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/v1/devices", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/v1/devices", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(router, http.MethodGet, "/api/v1/devices", "").Code)

	// Health is outside the limited group.
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newRouter(t, 0)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices", nil)
	req.Header.Set("Origin", "https://console.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://console.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

type memoryRegistry struct {
	devices []*core.RegisteredDevice
}

func (r *memoryRegistry) UpsertDevice(_ context.Context, d *core.RegisteredDevice) error {
	r.devices = append(r.devices, d)
	return nil
}

func (r *memoryRegistry) GetDevice(_ context.Context, registryID, deviceID string) (*core.RegisteredDevice, error) {
	for _, d := range r.devices {
		if d.RegistryID == registryID && d.DeviceID == deviceID {
			return d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryRegistry) ListDevices(_ context.Context, registryID string) ([]*core.RegisteredDevice, error) {
	var out []*core.RegisteredDevice
	for _, d := range r.devices {
		if d.RegistryID == registryID {
			out = append(out, d)
		}
	}
	return out, nil
}

func TestRegistryRoutes(t *testing.T) {
	registry := &memoryRegistry{devices: []*core.RegisteredDevice{
		{RegistryID: "ZZ-TRI-FECTA", DeviceID: "AHU-22", GatewayID: "GAT-123", Fingerprint: "abc"},
		{RegistryID: "ZZ-TRI-FECTA", DeviceID: "GAT-123", Fingerprint: "def"},
		{RegistryID: "OTHER", DeviceID: "AHU-1", Fingerprint: "123"},
	}}
	router, _ := newRouterWithRegistry(t, 0, registry)

	w := do(router, http.MethodGet, "/api/v1/registry/devices", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ZZ-TRI-FECTA", body["registry_id"])
	assert.EqualValues(t, 2, body["count"])

	w = do(router, http.MethodGet, "/api/v1/registry/devices?registry_id=OTHER", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = do(router, http.MethodGet, "/api/v1/registry/devices/AHU-22", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "GAT-123", body["gateway_id"])
	assert.Equal(t, "abc", body["fingerprint"])

	w = do(router, http.MethodGet, "/api/v1/registry/devices/AHU-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegistryRoutes_NotConfigured(t *testing.T) {
	router, _ := newRouter(t, 0)
	w := do(router, http.MethodGet, "/api/v1/registry/devices", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

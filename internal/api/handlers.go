package api

import (
	"errors"
	"net/http"
	"time"

	"example.com/backstage/services/sitemodel/internal/core"
	"example.com/backstage/services/sitemodel/internal/sitemodel"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// APIHandlers serves a loaded site model over HTTP.
type APIHandlers struct {
	site      *sitemodel.SiteModel
	projectID string
	registry  core.Repository
}

// NewAPIHandlers creates a new handler instance. projectID is used for
// endpoint lookups that do not name one. registry may be nil, in which case
// the registry routes answer 503.
func NewAPIHandlers(site *sitemodel.SiteModel, projectID string, registry core.Repository) *APIHandlers {
	return &APIHandlers{site: site, projectID: projectID, registry: registry}
}

// HealthCheck returns service health status
func (h *APIHandlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"service":   "sitemodel-api",
	})
}

// GetSite returns the site's cloud config.
func (h *APIHandlers) GetSite(c *gin.Context) {
	cfg, err := h.site.CloudIotConfig()
	if err != nil {
		_ = c.Error(err)
		return
	}
	ids, err := h.site.DeviceIDs()
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"site_path":        h.site.SitePath(),
		"cloud_iot_config": cfg,
		"device_count":     len(ids),
	})
}

// ListDevices returns the site's device ids in sorted order.
func (h *APIHandlers) ListDevices(c *gin.Context) {
	ids, err := h.site.DeviceIDs()
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": ids,
		"count":   len(ids),
	})
}

// GetDevice returns a device's metadata.
func (h *APIHandlers) GetDevice(c *gin.Context) {
	deviceID := c.Param("id")
	md, err := h.site.Metadata(deviceID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id": deviceID,
		"metadata":  md,
	})
}

// GetDeviceKeyFile resolves the key a device authenticates with.
func (h *APIHandlers) GetDeviceKeyFile(c *gin.Context) {
	deviceID := c.Param("id")
	keyDevice, err := h.site.KeyDevice(deviceID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	authType, err := h.site.AuthType(keyDevice)
	if err != nil {
		_ = c.Error(err)
		return
	}
	keyFile, err := h.site.DeviceKeyFile(deviceID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id":  deviceID,
		"key_device": keyDevice,
		"auth_type":  authType,
		"key_file":   keyFile,
	})
}

// GetDeviceEndpoint builds the MQTT endpoint of a device.
func (h *APIHandlers) GetDeviceEndpoint(c *gin.Context) {
	projectID := c.DefaultQuery("project_id", h.projectID)
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id is required"})
		return
	}

	endpoint, err := h.site.EndpointConfig(projectID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, endpoint)
}

// ParseClientID splits a client id into its components.
func (h *APIHandlers) ParseClientID(c *gin.Context) {
	var req struct {
		ClientID string `json:"client_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format", "details": err.Error()})
		return
	}

	info, err := sitemodel.ParseClientID(req.ClientID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// EndpointFromEnvelope builds an endpoint from message envelope attributes.
func (h *APIHandlers) EndpointFromEnvelope(c *gin.Context) {
	var envelope sitemodel.Envelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format", "details": err.Error()})
		return
	}

	endpoint, err := sitemodel.EndpointConfigFromEnvelope(&envelope)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, endpoint)
}

// --- Registry mirror endpoints ---

func (h *APIHandlers) requireRegistry(c *gin.Context) bool {
	if h.registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "registry database not configured"})
		return false
	}
	return true
}

// ListRegisteredDevices returns the mirrored rows of a registry, the site's
// own unless registry_id is given.
func (h *APIHandlers) ListRegisteredDevices(c *gin.Context) {
	if !h.requireRegistry(c) {
		return
	}

	registryID := c.Query("registry_id")
	if registryID == "" {
		var err error
		if registryID, err = h.site.RegistryID(); err != nil {
			_ = c.Error(err)
			return
		}
	}

	devices, err := h.registry.ListDevices(c.Request.Context(), registryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list registered devices"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"registry_id": registryID,
		"devices":     devices,
		"count":       len(devices),
	})
}

// GetRegisteredDevice returns the mirrored row of a site device.
func (h *APIHandlers) GetRegisteredDevice(c *gin.Context) {
	if !h.requireRegistry(c) {
		return
	}

	registryID, err := h.site.RegistryID()
	if err != nil {
		_ = c.Error(err)
		return
	}

	device, err := h.registry.GetDevice(c.Request.Context(), registryID, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not registered"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get registered device"})
		}
		return
	}

	c.JSON(http.StatusOK, device)
}

// services/sitemodel/internal/sitemodel/sitemodel.go
package sitemodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

const (
	cloudIotConfigFile = "cloud_iot_config.json"
	devicesDir         = "devices"
	metadataFile       = "metadata.json"
	keyFileFormat      = "%s/devices/%s/%s_private.pkcs8"
)

// SiteModel serves the registry binding and device metadata of one site
// directory. It must be initialized before use; afterwards it is read-only and
// safe for concurrent readers.
type SiteModel struct {
	sitePath       string
	logger         *logrus.Entry
	cloudIotConfig *CloudIotConfig
	allMetadata    map[string]*Metadata
}

// New creates an uninitialized site model rooted at sitePath.
func New(sitePath string, logger *logrus.Logger) *SiteModel {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SiteModel{
		sitePath: sitePath,
		logger: logger.WithFields(logrus.Fields{
			"component": "SiteModel",
			"site_path": sitePath,
		}),
	}
}

// SitePath returns the site root directory.
func (s *SiteModel) SitePath() string {
	return s.sitePath
}

// Initialize loads the site config and then every device's metadata. On
// failure the model stays uninitialized.
func (s *SiteModel) Initialize() error {
	if s.allMetadata != nil {
		return newError(KindAlreadyInitialized, s.sitePath, nil)
	}
	if s.sitePath == "" {
		return newError(KindMissingField, "sitePath", nil)
	}

	cfg, err := s.loadSiteConfig()
	if err != nil {
		return err
	}

	all, err := s.loadAllDeviceMetadata()
	if err != nil {
		return err
	}

	s.cloudIotConfig = cfg
	s.allMetadata = all

	s.logger.WithFields(logrus.Fields{
		"registry_id":  cfg.RegistryID,
		"cloud_region": cfg.CloudRegion,
		"devices":      len(all),
	}).Info("Site model initialized")
	return nil
}

func (s *SiteModel) loadSiteConfig() (*CloudIotConfig, error) {
	path := filepath.Join(s.sitePath, cloudIotConfigFile)

	var cfg CloudIotConfig
	if err := readJSON(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.RegistryID == "" {
		return nil, newError(KindMissingField, path+": registry_id", nil)
	}
	if cfg.CloudRegion == "" {
		return nil, newError(KindMissingField, path+": cloud_region", nil)
	}

	s.logger.WithField("file", path).Debug("Loaded site config")
	return &cfg, nil
}

func (s *SiteModel) listDevices() ([]string, error) {
	dir := filepath.Join(s.sitePath, devicesDir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError(KindNotFound, dir, err)
		}
		return nil, newError(KindNotFound, "reading "+dir, err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

func (s *SiteModel) loadAllDeviceMetadata() (map[string]*Metadata, error) {
	ids, err := s.listDevices()
	if err != nil {
		return nil, err
	}

	all := make(map[string]*Metadata, len(ids))
	for _, id := range ids {
		md, err := s.loadDeviceMetadata(id)
		if err != nil {
			return nil, err
		}
		all[id] = md
	}
	return all, nil
}

func (s *SiteModel) loadDeviceMetadata(deviceID string) (*Metadata, error) {
	path := filepath.Join(s.sitePath, devicesDir, deviceID, metadataFile)

	var md Metadata
	if err := readJSON(path, &md); err != nil {
		return nil, err
	}

	s.logger.WithField("device_id", deviceID).Debug("Loaded device metadata")
	return &md, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newError(KindNotFound, path, err)
		}
		return newError(KindNotFound, "reading "+path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return newError(KindParse, path, err)
	}
	return nil
}

func (s *SiteModel) checkInitialized() error {
	if s.allMetadata == nil {
		return newError(KindNotInitialized, s.sitePath, nil)
	}
	return nil
}

// Metadata returns the loaded metadata of deviceID. An unknown device yields
// ErrUnknownDevice.
func (s *SiteModel) Metadata(deviceID string) (*Metadata, error) {
	if err := s.checkInitialized(); err != nil {
		return nil, err
	}
	md, ok := s.allMetadata[deviceID]
	if !ok {
		return nil, newError(KindUnknownDevice, deviceID, nil)
	}
	return md, nil
}

// ForEachDevice calls fn once for every loaded device, in no particular order.
func (s *SiteModel) ForEachDevice(fn func(deviceID string, md *Metadata)) error {
	if err := s.checkInitialized(); err != nil {
		return err
	}
	for id, md := range s.allMetadata {
		fn(id, md)
	}
	return nil
}

// DeviceIDs returns the identifiers of all loaded devices, sorted.
func (s *SiteModel) DeviceIDs() ([]string, error) {
	if err := s.checkInitialized(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(s.allMetadata))
	for id := range s.allMetadata {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// AuthType returns the credential algorithm declared by deviceID.
func (s *SiteModel) AuthType(deviceID string) (AuthType, error) {
	md, err := s.Metadata(deviceID)
	if err != nil {
		return "", err
	}
	if md.Cloud == nil || md.Cloud.AuthType == "" {
		return "", newError(KindMissingField, deviceID+": cloud.auth_type", nil)
	}
	return md.Cloud.AuthType, nil
}

// KeyDevice returns the device whose key material deviceID authenticates
// with: its gateway when one is declared, otherwise the device itself.
func (s *SiteModel) KeyDevice(deviceID string) (string, error) {
	md, err := s.Metadata(deviceID)
	if err != nil {
		return "", err
	}
	gatewayID := md.GatewayID()
	if gatewayID == "" {
		return deviceID, nil
	}
	if _, ok := s.allMetadata[gatewayID]; !ok {
		return "", newError(KindUnknownDevice,
			fmt.Sprintf("gateway %s of device %s", gatewayID, deviceID), nil)
	}
	return gatewayID, nil
}

// DeviceKeyFile returns the private key path used to authenticate deviceID.
// The file itself is not opened.
func (s *SiteModel) DeviceKeyFile(deviceID string) (string, error) {
	keyDevice, err := s.KeyDevice(deviceID)
	if err != nil {
		return "", err
	}
	authType, err := s.AuthType(keyDevice)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(keyFileFormat, s.sitePath, keyDevice, authType.KeyPrefix()), nil
}

// CloudIotConfig returns the loaded site config.
func (s *SiteModel) CloudIotConfig() (*CloudIotConfig, error) {
	if err := s.checkInitialized(); err != nil {
		return nil, err
	}
	return s.cloudIotConfig, nil
}

// RegistryID returns the site's registry identifier.
func (s *SiteModel) RegistryID() (string, error) {
	cfg, err := s.CloudIotConfig()
	if err != nil {
		return "", err
	}
	return cfg.RegistryID, nil
}

// UpdateTopic returns the site's update topic; it may be empty.
func (s *SiteModel) UpdateTopic() (string, error) {
	cfg, err := s.CloudIotConfig()
	if err != nil {
		return "", err
	}
	return cfg.UpdateTopic, nil
}

// EndpointConfig derives the endpoint of deviceID within this site's registry.
func (s *SiteModel) EndpointConfig(projectID, deviceID string) (*EndpointConfiguration, error) {
	cfg, err := s.CloudIotConfig()
	if err != nil {
		return nil, err
	}
	return MakeEndpointConfig(projectID, cfg, deviceID), nil
}

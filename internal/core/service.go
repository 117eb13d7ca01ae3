// services/sitemodel/internal/core/service.go
package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example.com/backstage/services/sitemodel/internal/infrastructure"
	"example.com/backstage/services/sitemodel/internal/sitemodel"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FingerprintCache remembers the last synced fingerprint of each device.
type FingerprintCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
}

// UpdatePublisher delivers update notices to a queue or topic.
type UpdatePublisher interface {
	Publish(ctx context.Context, topic string, message interface{}) error
}

// DeadLetterWriter journals notices that could not be published.
type DeadLetterWriter interface {
	Write(topic string, data interface{}, cause error) error
}

// RegistrarConfig wires the registrar's collaborators. Only Store is required.
type RegistrarConfig struct {
	Store          Repository
	Cache          FingerprintCache
	Publisher      UpdatePublisher
	DeadLetter     DeadLetterWriter
	Logger         *logrus.Logger
	FingerprintTTL time.Duration
}

// RegistrarService mirrors a site model into the registry database and
// announces changed devices on the site's update topic.
type RegistrarService struct {
	store          Repository
	cache          FingerprintCache
	publisher      UpdatePublisher
	deadLetter     DeadLetterWriter
	logger         *logrus.Logger
	fingerprintTTL time.Duration
	now            func() time.Time
}

func NewRegistrarService(cfg RegistrarConfig) (*RegistrarService, error) {
	if cfg.Store == nil {
		return nil, ErrStoreRequired
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RegistrarService{
		store:          cfg.Store,
		cache:          cfg.Cache,
		publisher:      cfg.Publisher,
		deadLetter:     cfg.DeadLetter,
		logger:         logger,
		fingerprintTTL: cfg.FingerprintTTL,
		now:            time.Now,
	}, nil
}

// Fingerprint hashes the parts of a device model the registry mirrors.
func Fingerprint(md *sitemodel.Metadata, keyFile string) (string, error) {
	data, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(keyFile))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func fingerprintKey(registryID, deviceID string) string {
	return fmt.Sprintf("sitemodel:%s:%s", registryID, deviceID)
}

// Sync mirrors every device of site. Store failures abort the run; cache and
// publish failures are logged and the run continues.
func (s *RegistrarService) Sync(ctx context.Context, site *sitemodel.SiteModel) (*SyncStats, error) {
	if site == nil {
		return nil, ErrSiteRequired
	}

	cloudCfg, err := site.CloudIotConfig()
	if err != nil {
		return nil, err
	}
	ids, err := site.DeviceIDs()
	if err != nil {
		return nil, err
	}

	stats := &SyncStats{Total: len(ids)}
	logger := s.logger.WithFields(logrus.Fields{
		"registry_id":  cloudCfg.RegistryID,
		"update_topic": cloudCfg.UpdateTopic,
	})
	logger.WithField("devices", len(ids)).Info("Starting registrar sync")

	for _, deviceID := range ids {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := s.syncDevice(ctx, site, cloudCfg, deviceID, stats, logger); err != nil {
			return stats, err
		}
	}

	logger.WithFields(logrus.Fields{
		"total":         stats.Total,
		"updated":       stats.Updated,
		"unchanged":     stats.Unchanged,
		"skipped":       stats.Skipped,
		"published":     stats.Published,
		"dead_lettered": stats.DeadLettered,
	}).Info("Registrar sync completed")
	return stats, nil
}

func (s *RegistrarService) syncDevice(ctx context.Context, site *sitemodel.SiteModel, cloudCfg *sitemodel.CloudIotConfig,
	deviceID string, stats *SyncStats, logger *logrus.Entry) error {
	logger = logger.WithField("device_id", deviceID)

	md, err := site.Metadata(deviceID)
	if err != nil {
		return err
	}

	// Devices without credentials (e.g. proxies with no cloud block) are
	// mirrored without a key file.
	var authType sitemodel.AuthType
	var keyFile string
	if md.Cloud != nil && md.Cloud.AuthType != "" {
		authType = md.Cloud.AuthType
		keyFile, err = site.DeviceKeyFile(deviceID)
		if err != nil {
			logger.WithError(err).Warn("Skipping device with unresolvable key file")
			stats.Skipped++
			return nil
		}
	}

	fingerprint, err := Fingerprint(md, keyFile)
	if err != nil {
		return err
	}

	cacheKey := fingerprintKey(cloudCfg.RegistryID, deviceID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey)
		switch {
		case err == nil && cached == fingerprint:
			logger.Debug("Device unchanged")
			stats.Unchanged++
			return nil
		case err != nil && !errors.Is(err, infrastructure.ErrCacheMiss):
			logger.WithError(err).Warn("Fingerprint cache read failed")
		}
	}

	device := &RegisteredDevice{
		RegistryID:  cloudCfg.RegistryID,
		DeviceID:    deviceID,
		CloudRegion: cloudCfg.CloudRegion,
		AuthType:    string(authType),
		GatewayID:   md.GatewayID(),
		KeyFile:     keyFile,
		Fingerprint: fingerprint,
	}
	if err := s.store.UpsertDevice(ctx, device); err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", deviceID, err)
	}
	stats.Updated++

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, fingerprint, s.fingerprintTTL); err != nil {
			logger.WithError(err).Warn("Fingerprint cache write failed")
		}
	}

	s.announce(ctx, cloudCfg, deviceID, fingerprint, md, stats, logger)
	return nil
}

func (s *RegistrarService) announce(ctx context.Context, cloudCfg *sitemodel.CloudIotConfig, deviceID, fingerprint string,
	md *sitemodel.Metadata, stats *SyncStats, logger *logrus.Entry) {
	topic := cloudCfg.UpdateTopic
	if topic == "" || s.publisher == nil {
		return
	}

	notice := &UpdateNotice{
		MessageID:   uuid.NewString(),
		RegistryID:  cloudCfg.RegistryID,
		DeviceID:    deviceID,
		Fingerprint: fingerprint,
		Timestamp:   s.now().UTC(),
		Metadata:    md,
	}

	err := s.publisher.Publish(ctx, topic, notice)
	if err == nil {
		stats.Published++
		return
	}

	logger.WithError(err).WithField("topic", topic).Error("Failed to publish update notice")
	if s.deadLetter == nil {
		return
	}
	if dlErr := s.deadLetter.Write(topic, notice, err); dlErr != nil {
		logger.WithError(dlErr).Error("Failed to dead-letter update notice")
		return
	}
	stats.DeadLettered++
}

// services/sitemodel/internal/core/models.go
package core

import (
	"time"

	"example.com/backstage/services/sitemodel/internal/sitemodel"
)

// RegisteredDevice mirrors one site device in the registry database.
type RegisteredDevice struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	RegistryID  string    `json:"registry_id" gorm:"uniqueIndex:idx_registry_device;not null"`
	DeviceID    string    `json:"device_id" gorm:"uniqueIndex:idx_registry_device;not null"`
	CloudRegion string    `json:"cloud_region" gorm:"not null"`
	AuthType    string    `json:"auth_type"`
	GatewayID   string    `json:"gateway_id" gorm:"index"`
	KeyFile     string    `json:"key_file"`
	Fingerprint string    `json:"fingerprint" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName overrides for GORM
func (RegisteredDevice) TableName() string { return "registered_devices" }

// UpdateNotice is published to the site's update topic when a device model changes.
type UpdateNotice struct {
	MessageID   string              `json:"message_id"`
	RegistryID  string              `json:"registry_id"`
	DeviceID    string              `json:"device_id"`
	Fingerprint string              `json:"fingerprint"`
	Timestamp   time.Time           `json:"timestamp"`
	Metadata    *sitemodel.Metadata `json:"metadata"`
}

// SyncStats summarises a registrar run.
type SyncStats struct {
	Total        int `json:"total"`
	Updated      int `json:"updated"`
	Unchanged    int `json:"unchanged"`
	Skipped      int `json:"skipped"`
	Published    int `json:"published"`
	DeadLettered int `json:"dead_lettered"`
}

package core

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the data access operations of the registry mirror.
// GetDevice returns gorm.ErrRecordNotFound for an unknown device.
type Repository interface {
	UpsertDevice(ctx context.Context, device *RegisteredDevice) error
	GetDevice(ctx context.Context, registryID, deviceID string) (*RegisteredDevice, error)
	ListDevices(ctx context.Context, registryID string) ([]*RegisteredDevice, error)
}

// repository depends on the generic *gorm.DB, not a concrete type from infrastructure.
type repository struct {
	db *gorm.DB
}

// NewRepository accepts a *gorm.DB, inverting the dependency.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) UpsertDevice(ctx context.Context, d *RegisteredDevice) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "registry_id"}, {Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cloud_region", "auth_type", "gateway_id", "key_file", "fingerprint", "updated_at",
		}),
	}).Create(d).Error
}

func (r *repository) GetDevice(ctx context.Context, registryID, deviceID string) (*RegisteredDevice, error) {
	var d RegisteredDevice
	err := r.db.WithContext(ctx).
		Where("registry_id = ? AND device_id = ?", registryID, deviceID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repository) ListDevices(ctx context.Context, registryID string) ([]*RegisteredDevice, error) {
	var devices []*RegisteredDevice
	q := r.db.WithContext(ctx)
	if registryID != "" {
		q = q.Where("registry_id = ?", registryID)
	}
	return devices, q.Order("device_id").Find(&devices).Error
}

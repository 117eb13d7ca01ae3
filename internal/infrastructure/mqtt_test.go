package infrastructure

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"example.com/backstage/services/sitemodel/config"
	"example.com/backstage/services/sitemodel/internal/sitemodel"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeECKey(t *testing.T) (string, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ec_private.pkcs8")
	require.NoError(t, os.WriteFile(path, der, 0o600))
	return path, key
}

func testConnectionConfig(keyFile string) DeviceConnectionConfig {
	return DeviceConnectionConfig{
		Endpoint: sitemodel.MakeEndpointConfig("bos-platform",
			&sitemodel.CloudIotConfig{RegistryID: "ZZ-TRI-FECTA", CloudRegion: "us-central1"}, "AHU-1"),
		DeviceID:  "AHU-1",
		ProjectID: "bos-platform",
		KeyFile:   keyFile,
		AuthType:  sitemodel.AuthTypeES256,
		QoS:       1,
	}
}

func TestNewDeviceClient_Defaults(t *testing.T) {
	keyFile, _ := writeECKey(t)
	client, err := NewDeviceClient(testConnectionConfig(keyFile), logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "ssl://mqtt.googleapis.com:8883", client.config.BrokerURL())
	assert.Equal(t, "/devices/AHU-1/config", client.config.ConfigTopic())
	assert.Equal(t, "/devices/AHU-1/state", client.config.StateTopic())
	assert.Equal(t, time.Hour, client.config.JWTTTL)
	assert.False(t, client.IsConnected())
}

func TestNewDeviceClient_Validation(t *testing.T) {
	keyFile, _ := writeECKey(t)

	cfg := testConnectionConfig(keyFile)
	cfg.Endpoint = nil
	_, err := NewDeviceClient(cfg, logrus.New())
	assert.Error(t, err)

	cfg = testConnectionConfig(keyFile)
	cfg.DeviceID = ""
	_, err = NewDeviceClient(cfg, logrus.New())
	assert.Error(t, err)

	cfg = testConnectionConfig(filepath.Join(t.TempDir(), "missing.pkcs8"))
	_, err = NewDeviceClient(cfg, logrus.New())
	assert.Error(t, err)
}

func TestNewDeviceClient_RejectsKeyAuthTypeMismatch(t *testing.T) {
	keyFile, _ := writeECKey(t)

	cfg := testConnectionConfig(keyFile)
	cfg.AuthType = sitemodel.AuthTypeRS256
	client, err := NewDeviceClient(cfg, logrus.New())
	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match auth type")
}

func TestDeviceClient_Credentials(t *testing.T) {
	keyFile, key := writeECKey(t)
	client, err := NewDeviceClient(testConnectionConfig(keyFile), logrus.New())
	require.NoError(t, err)

	username, password := client.credentials()
	assert.Equal(t, "unused", username)

	token, err := jwt.Parse(password, func(*jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}), jwt.WithAudience("bos-platform"))
	require.NoError(t, err)
	assert.True(t, token.Valid)
}

func TestDeviceClient_PublishRequiresConnection(t *testing.T) {
	keyFile, _ := writeECKey(t)
	client, err := NewDeviceClient(testConnectionConfig(keyFile), logrus.New())
	require.NoError(t, err)

	assert.Error(t, client.Publish("/devices/AHU-1/state", []byte("{}")))
}

func TestConstructorsRequireSettings(t *testing.T) {
	_, err := NewDatabase(config.DatabaseConfig{})
	assert.Error(t, err)

	_, err = NewMessaging(config.ServiceBusConfig{})
	assert.Error(t, err)
}

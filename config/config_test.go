package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Site.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 8883, cfg.MQTT.Port)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, time.Hour, cfg.MQTT.JWTTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
site:
  path: /sites/zz-tri-fecta
  project_id: bos-platform
server:
  port: 9090
mqtt:
  jwt_ttl: 20m
logging:
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SITEMODEL_SERVER_PORT", "9191")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/sites/zz-tri-fecta", cfg.Site.Path)
	assert.Equal(t, "bos-platform", cfg.Site.ProjectID)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 20*time.Minute, cfg.MQTT.JWTTTL)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site:\n  path: /from/file\n"), 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("site", "", "")
	flags.String("project", "", "")
	require.NoError(t, flags.Parse([]string{"--site", "/from/flag", "--project", "flag-project"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.Site.Path)
	assert.Equal(t, "flag-project", cfg.Site.ProjectID)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("site: [unclosed"), 0o600))

	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger, err = NewLogger(LoggingConfig{Level: "warn"})
	require.NoError(t, err)
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = NewLogger(LoggingConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)

	_, err = NewLogger(LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

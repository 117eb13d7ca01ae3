// services/sitemodel/internal/infrastructure/mqtt.go
package infrastructure

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"example.com/backstage/services/sitemodel/internal/sitemodel"
	"example.com/backstage/services/sitemodel/internal/utils"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// ConfigHandler receives device config payloads.
type ConfigHandler func(payload []byte)

// DeviceConnectionConfig holds everything needed to open a device session.
type DeviceConnectionConfig struct {
	Endpoint          *sitemodel.EndpointConfiguration
	DeviceID          string
	ProjectID         string
	KeyFile           string
	AuthType          sitemodel.AuthType
	Port              int
	QoS               byte
	JWTTTL            time.Duration
	KeepAlive         time.Duration
	ConnectTimeout    time.Duration
	MaxReconnectDelay time.Duration
	TLSConfig         *tls.Config
}

// BrokerURL returns the TLS broker address of the endpoint.
func (c DeviceConnectionConfig) BrokerURL() string {
	return fmt.Sprintf("ssl://%s:%d", c.Endpoint.Hostname, c.Port)
}

// ConfigTopic is the topic the device receives its config on.
func (c DeviceConnectionConfig) ConfigTopic() string {
	return fmt.Sprintf("/devices/%s/config", c.DeviceID)
}

// StateTopic is the topic the device reports state on.
func (c DeviceConnectionConfig) StateTopic() string {
	return fmt.Sprintf("/devices/%s/state", c.DeviceID)
}

// DeviceClient is an MQTT session authenticated as a single device.
type DeviceClient struct {
	config        DeviceConnectionConfig
	key           *utils.DeviceKey
	client        mqtt.Client
	logger        *logrus.Entry
	mu            sync.RWMutex
	connected     bool
	configHandler ConfigHandler
}

// NewDeviceClient validates the connection settings, loads the device key and
// checks that it can sign a token for the configured auth type.
func NewDeviceClient(config DeviceConnectionConfig, logger *logrus.Logger) (*DeviceClient, error) {
	if config.Endpoint == nil || config.Endpoint.ClientID == "" {
		return nil, fmt.Errorf("MQTT endpoint client id is required")
	}
	if config.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if config.Port == 0 {
		config.Port = 8883
	}
	if config.JWTTTL == 0 {
		config.JWTTTL = time.Hour
	}

	key, err := utils.LoadDeviceKey(config.KeyFile)
	if err != nil {
		return nil, err
	}
	// The key must be able to sign for the configured auth type.
	if _, err := utils.CreateDeviceJWT(key, config.AuthType, config.ProjectID, config.JWTTTL, time.Now()); err != nil {
		return nil, err
	}

	return &DeviceClient{
		config: config,
		key:    key,
		logger: logger.WithFields(logrus.Fields{
			"component": "DeviceClient",
			"device_id": config.DeviceID,
		}),
	}, nil
}

// SetConfigHandler registers the callback for config messages.
func (c *DeviceClient) SetConfigHandler(handler ConfigHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configHandler = handler
}

// Start connects to the broker. A fresh JWT is minted for every connection attempt.
func (c *DeviceClient) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.BrokerURL())
	opts.SetClientID(c.config.Endpoint.ClientID)
	opts.SetCredentialsProvider(c.credentials)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(c.config.KeepAlive)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetAutoReconnect(true)
	if c.config.MaxReconnectDelay > 0 {
		opts.SetMaxReconnectInterval(c.config.MaxReconnectDelay)
	}

	tlsConfig := c.config.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	opts.SetTLSConfig(tlsConfig)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(opts)

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.WithField("broker", c.config.BrokerURL()).Info("Device connected")
	return nil
}

// credentials supplies the username/password pair paho sends on connect.
func (c *DeviceClient) credentials() (string, string) {
	token, err := utils.CreateDeviceJWT(c.key, c.config.AuthType, c.config.ProjectID, c.config.JWTTTL, time.Now())
	if err != nil {
		c.logger.WithError(err).Error("Failed to create device JWT")
		return "unused", ""
	}
	c.logger.Debug("Created device JWT")
	return "unused", token
}

// Stop disconnects from the broker.
func (c *DeviceClient) Stop() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
	c.logger.Info("Device disconnected")
}

// IsConnected returns the connection status
func (c *DeviceClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *DeviceClient) onConnect(client mqtt.Client) {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	topic := c.config.ConfigTopic()
	if token := client.Subscribe(topic, c.config.QoS, c.onMessage); token.Wait() && token.Error() != nil {
		c.logger.WithError(token.Error()).WithField("topic", topic).
			Error("Failed to subscribe to config topic")
		return
	}
	c.logger.WithField("topic", topic).Info("Subscribed to config topic")
}

func (c *DeviceClient) onConnectionLost(client mqtt.Client, err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.logger.WithError(err).Warn("Lost connection to MQTT broker")
}

func (c *DeviceClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	c.logger.Info("Attempting to reconnect to MQTT broker...")
}

func (c *DeviceClient) onMessage(client mqtt.Client, msg mqtt.Message) {
	c.logger.WithFields(logrus.Fields{
		"topic": msg.Topic(),
		"size":  len(msg.Payload()),
	}).Info("Received config")

	c.mu.RLock()
	handler := c.configHandler
	c.mu.RUnlock()

	if handler == nil {
		c.logger.Info("No config handler")
		return
	}
	handler(msg.Payload())
}

// Publish sends payload on topic at the configured QoS.
func (c *DeviceClient) Publish(topic string, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	token := c.client.Publish(topic, c.config.QoS, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message: %w", token.Error())
	}

	return nil
}

// PublishState reports a state document on the device's state topic.
func (c *DeviceClient) PublishState(payload []byte) error {
	return c.Publish(c.config.StateTopic(), payload)
}

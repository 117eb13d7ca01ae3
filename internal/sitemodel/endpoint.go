package sitemodel

// DefaultEndpointHostname is the MQTT bridge every endpoint points at.
const DefaultEndpointHostname = "mqtt.googleapis.com"

// MakeEndpointConfig derives the endpoint of deviceID in the registry described by cfg.
func MakeEndpointConfig(projectID string, cfg *CloudIotConfig, deviceID string) *EndpointConfiguration {
	return &EndpointConfiguration{
		ClientID: MakeClientID(projectID, cfg.CloudRegion, cfg.RegistryID, deviceID),
		Hostname: DefaultEndpointHostname,
	}
}

// EndpointConfigFromEnvelope derives the endpoint of the device that sent a message.
func EndpointConfigFromEnvelope(envelope *Envelope) (*EndpointConfiguration, error) {
	if envelope == nil {
		return nil, newError(KindInvalidArgument, "envelope not specified", nil)
	}
	cfg, err := cloudIotConfigFromEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	return MakeEndpointConfig(envelope.ProjectID, cfg, envelope.DeviceID), nil
}

func cloudIotConfigFromEnvelope(envelope *Envelope) (*CloudIotConfig, error) {
	if envelope.DeviceRegistryID == "" {
		return nil, newError(KindMissingField, "deviceRegistryId", nil)
	}
	if envelope.DeviceRegistryLocation == "" {
		return nil, newError(KindMissingField, "deviceRegistryLocation", nil)
	}
	return &CloudIotConfig{
		RegistryID:  envelope.DeviceRegistryID,
		CloudRegion: envelope.DeviceRegistryLocation,
	}, nil
}

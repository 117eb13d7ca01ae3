package sitemodel

import (
	"fmt"
	"regexp"
)

const clientIDFormat = "projects/%s/locations/%s/registries/%s/devices/%s"

var clientIDPattern = regexp.MustCompile(
	`^projects/([^/]*)/locations/([^/]*)/registries/([^/]*)/devices/([^/]*)$`)

// MakeClientID formats the fully qualified client identifier of a device.
func MakeClientID(projectID, cloudRegion, registryID, deviceID string) string {
	return fmt.Sprintf(clientIDFormat, projectID, cloudRegion, registryID, deviceID)
}

// ParseClientID splits a client identifier produced by MakeClientID. Empty
// components are returned as "".
func ParseClientID(clientID string) (*ClientInfo, error) {
	if clientID == "" {
		return nil, newError(KindInvalidArgument, "client_id not specified", nil)
	}

	m := clientIDPattern.FindStringSubmatch(clientID)
	if m == nil {
		return nil, newError(KindInvalidArgument,
			fmt.Sprintf("client_id %s does not match pattern %s", clientID, clientIDPattern.String()), nil)
	}

	return &ClientInfo{
		ProjectID:   m[1],
		CloudRegion: m[2],
		RegistryID:  m[3],
		DeviceID:    m[4],
	}, nil
}

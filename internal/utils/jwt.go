package utils

import (
	"fmt"
	"time"

	"example.com/backstage/services/sitemodel/internal/sitemodel"
	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod maps a device auth type onto its JWT algorithm.
func SigningMethod(authType sitemodel.AuthType) jwt.SigningMethod {
	if authType.IsRSA() {
		return jwt.SigningMethodRS256
	}
	return jwt.SigningMethodES256
}

// CreateDeviceJWT mints the connection password for a device session. The
// audience is the cloud project.
func CreateDeviceJWT(key *DeviceKey, authType sitemodel.AuthType, projectID string, ttl time.Duration, now time.Time) (string, error) {
	if key.IsRSA() != authType.IsRSA() {
		return "", fmt.Errorf("key %s does not match auth type %s", key.Path, authType)
	}

	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"aud": projectID,
	}

	token := jwt.NewWithClaims(SigningMethod(authType), claims)
	signed, err := token.SignedString(key.Signer())
	if err != nil {
		return "", fmt.Errorf("signing device token: %w", err)
	}
	return signed, nil
}

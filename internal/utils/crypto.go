// services/sitemodel/internal/utils/crypto.go
package utils

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// DeviceKey is a device private key loaded from a *_private.pkcs8 file.
type DeviceKey struct {
	Path   string
	signer crypto.Signer
}

// LoadDeviceKey loads a PKCS#8 private key, DER or PEM encoded. Only RSA and
// EC keys are accepted.
func LoadDeviceKey(path string) (*DeviceKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	der := keyData
	if block, _ := pem.Decode(keyData); block != nil {
		der = block.Bytes
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", path, err)
	}

	switch key := parsed.(type) {
	case *rsa.PrivateKey:
		return &DeviceKey{Path: path, signer: key}, nil
	case *ecdsa.PrivateKey:
		return &DeviceKey{Path: path, signer: key}, nil
	default:
		return nil, errors.New("not an RSA or EC private key")
	}
}

// Signer returns the underlying private key.
func (k *DeviceKey) Signer() crypto.Signer {
	return k.signer
}

// IsRSA reports whether the key is an RSA key.
func (k *DeviceKey) IsRSA() bool {
	_, ok := k.signer.(*rsa.PrivateKey)
	return ok
}

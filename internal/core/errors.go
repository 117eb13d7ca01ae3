// services/sitemodel/internal/core/errors.go
package core

import (
	"fmt"
)

// BusinessError represents a registrar error with a code.
type BusinessError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e BusinessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	ErrStoreRequired = BusinessError{"REGISTRAR_001", "registry store is required"}
	ErrSiteRequired  = BusinessError{"REGISTRAR_002", "site model is required"}
)

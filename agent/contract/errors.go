package contract

import "errors"

var (
	ErrModelInvoke       = errors.New("model invoke failed")
	ErrValidation        = errors.New("validation failed")
	ErrHopLimit          = errors.New("handler chain exceeded hop limit")
	ErrUnknownCapability = errors.New("no handler registered for capability")
)

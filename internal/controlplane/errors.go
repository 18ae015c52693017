package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidPayload = errors.New("invalid payload")
)

package cad

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a session method runs before Connect.
	ErrNotConnected = errors.New("not connected to CAD bridge")

	// ErrNoDocument is returned when a document operation runs before Open.
	ErrNoDocument = errors.New("no open document")
)

// UnknownParameterError reports a set_parameter call against a name the
// document does not expose.
type UnknownParameterError struct {
	Name string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("parameter %q not found in document", e.Name)
}

// BridgeError is a non-2xx reply from the bridge process.
type BridgeError struct {
	Op      string
	Status  int
	Message string
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("bridge %s failed (HTTP %d): %s", e.Op, e.Status, e.Message)
}

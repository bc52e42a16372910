package connector

import "errors"

var (
	// ErrNotFound indicates that no connector is registered under the requested name.
	ErrNotFound = errors.New("unknown source")

	// ErrDuplicateName indicates two connectors were registered under the same name.
	ErrDuplicateName = errors.New("duplicate connector name")

	// ErrInvalidConnector indicates a connector with an unusable descriptor.
	ErrInvalidConnector = errors.New("invalid connector")
)

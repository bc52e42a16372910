package vectorindex

import "errors"

var (
	// ErrIndexClosed indicates that the index backend is closed.
	ErrIndexClosed = errors.New("index is closed")

	// ErrSerializationFailed indicates a chunk entry could not be decoded.
	ErrSerializationFailed = errors.New("serialization failed")
)

package device

import "github.com/YuminosukeSato/cdlinear/pkg/errors"

var (
	// ErrNoBackend is returned by Open when no backend is registered.
	ErrNoBackend = errors.New("cdlinear/device: no backend registered")

	// ErrBackendUnavailable is returned when the backend cannot run on this system.
	ErrBackendUnavailable = errors.New("cdlinear/device: backend unavailable")

	// ErrOutOfMemory is returned when an allocation exceeds the device memory budget.
	ErrOutOfMemory = errors.New("cdlinear/device: out of memory")

	// ErrContextClosed is returned for any operation on a closed context.
	ErrContextClosed = errors.New("cdlinear/device: context closed")

	// ErrBufferClosed is returned when a closed buffer is used.
	ErrBufferClosed = errors.New("cdlinear/device: buffer closed")

	// ErrPrecisionMismatch is returned when kernel operands differ in precision.
	ErrPrecisionMismatch = errors.New("cdlinear/device: precision mismatch")

	// ErrForeignBuffer is returned for buffers allocated by another context.
	ErrForeignBuffer = errors.New("cdlinear/device: buffer belongs to another context")
)

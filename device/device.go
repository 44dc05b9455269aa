// Package device is the compute abstraction under the accelerated estimators.
//
// A Backend enumerates devices and opens a Context on one of them. Buffers are
// allocated in a Context, hold a column-major matrix in a fixed Precision and count
// against the device memory budget until closed. The kernels the coordinate
// descent solver needs (Gram matrix, matrix-vector products, column centering and
// scaling, the covariance update loop) are methods on Context.
//
// The host backend registered by default executes kernels on CPU goroutines; it is
// the reference device for tests and for machines without an accelerator.
package device

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Precision is the element type of a device buffer.
type Precision uint8

const (
	Float32 Precision = iota
	Float64
)

// Size returns the element size in bytes.
func (p Precision) Size() int {
	if p == Float32 {
		return 4
	}
	return 8
}

func (p Precision) String() string {
	switch p {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("Precision(%d)", uint8(p))
	}
}

// DeviceInfo describes a compute device.
type DeviceInfo struct {
	Name     string
	Vendor   string
	Driver   string
	MemoryMB int // 0 when unbounded
	Workers  int
}

// BackendInfo describes a backend implementation.
type BackendInfo struct {
	Name        string
	Version     string
	Description string
}

// Backend is implemented by device backends.
type Backend interface {
	Info() BackendInfo
	Available() bool
	Devices() ([]DeviceInfo, error)
	NewContext(deviceIndex int) (Context, error)
}

// CDParams configures the covariance coordinate descent kernel.
// L1Reg and L2Reg are already multiplied by the number of samples.
type CDParams struct {
	L1Reg   float64
	L2Reg   float64
	MaxIter int
	Tol     float64
	// Random draws every step's feature uniformly with replacement, seeded by Seed.
	Random bool
	Seed   uint64
}

// CDResult is the outcome of CDSolve. The solver keeps its iterate in float64 whatever the
// buffer precision.
type CDResult struct {
	Coef      []float64
	NIter     int
	Converged bool
}

// Context is a device session. Buffers from one Context must not be passed to another.
// A Context may be shared between goroutines; Close waits for running kernels.
type Context interface {
	Device() DeviceInfo

	// NewBuffer allocates a zeroed rows×cols buffer.
	NewBuffer(rows, cols int, precision Precision) (Buffer, error)
	// Upload copies m into a new buffer, rounding to precision.
	Upload(m mat.Matrix, precision Precision) (Buffer, error)

	// Gram returns XᵀX (p×p).
	Gram(x Buffer) (Buffer, error)
	// MatTVec returns Xᵀv for an n×1 v.
	MatTVec(x, v Buffer) (Buffer, error)
	// MatVec returns Xv for a p×1 v.
	MatVec(x, v Buffer) (Buffer, error)
	// CenterColumns subtracts column means in place and returns them.
	CenterColumns(x Buffer) ([]float64, error)
	// ColumnNorms returns the L2 norm of every column.
	ColumnNorms(x Buffer) ([]float64, error)
	// ScaleColumns divides column j by scale[j] in place.
	ScaleColumns(x Buffer, scale []float64) error
	// AddScalar adds s to every element in place.
	AddScalar(x Buffer, s float64) error
	// CDSolve minimizes ½wᵀGw − qᵀw + L1Reg·|w|₁ + ½·L2Reg·|w|² by coordinate descent.
	CDSolve(gram, xty Buffer, params CDParams) (CDResult, error)

	// Allocated reports the bytes held by open buffers.
	Allocated() int64
	// Close releases every buffer of the context.
	Close() error
}

// Buffer is a device-resident column-major matrix.
type Buffer interface {
	Rows() int
	Cols() int
	Precision() Precision
	// Download copies the column-major contents into dst, widening to float64.
	Download(dst []float64) error
	Close() error
}

// DownloadMatrix copies b into a new host matrix.
func DownloadMatrix(b Buffer) (*mat.Dense, error) {
	r, c := b.Rows(), b.Cols()
	colMajor := make([]float64, r*c)
	if err := b.Download(colMajor); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		out.SetCol(j, colMajor[j*r:(j+1)*r])
	}
	return out, nil
}

var (
	backendMu sync.RWMutex
	backend   Backend
)

func init() {
	RegisterBackend(NewHostBackend(HostBackendOptions{}))
}

// RegisterBackend sets the active backend. Passing nil clears it.
func RegisterBackend(b Backend) {
	backendMu.Lock()
	backend = b
	backendMu.Unlock()
}

// Current returns the active backend, if any.
func Current() (Backend, bool) {
	backendMu.RLock()
	b := backend
	backendMu.RUnlock()
	return b, b != nil
}

// Open creates a context on device deviceIndex of the active backend.
func Open(deviceIndex int) (Context, error) {
	b, ok := Current()
	if !ok {
		return nil, ErrNoBackend
	}
	if !b.Available() {
		return nil, ErrBackendUnavailable
	}
	return b.NewContext(deviceIndex)
}

package device

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
	"github.com/YuminosukeSato/cdlinear/pkg/log"
)

// HostBackendOptions configures the host backend.
type HostBackendOptions struct {
	// Workers bounds kernel goroutines. 0 means GOMAXPROCS.
	Workers int
	// MemoryLimit is the device memory budget in bytes. 0 means unlimited.
	MemoryLimit int64
}

// HostBackend executes kernels on CPU goroutines.
type HostBackend struct {
	opts   HostBackendOptions
	device DeviceInfo
}

// NewHostBackend returns a backend with a single host device.
func NewHostBackend(opts HostBackendOptions) *HostBackend {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &HostBackend{
		opts: opts,
		device: DeviceInfo{
			Name:     "host:0",
			Vendor:   "cdlinear",
			Driver:   "host",
			MemoryMB: int(opts.MemoryLimit >> 20),
			Workers:  opts.Workers,
		},
	}
}

func (b *HostBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "host",
		Version:     "1.0",
		Description: "CPU-backed device backend",
	}
}

func (b *HostBackend) Available() bool {
	return true
}

func (b *HostBackend) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{b.device}, nil
}

func (b *HostBackend) NewContext(deviceIndex int) (Context, error) {
	if deviceIndex != 0 {
		return nil, errors.NewValueError("HostBackend.NewContext", fmt.Sprintf("device index %d out of range", deviceIndex))
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &hostContext{
		device:  b.device,
		workers: b.opts.Workers,
		limit:   b.opts.MemoryLimit,
		ctx:     ctx,
		cancel:  cancel,
		live:    make(map[*hostBuffer]struct{}),
		logger:  log.GetLoggerWithName("device.host"),
	}
	c.logger.Debug("context opened",
		log.DeviceKey, b.device.Name,
		log.WorkersKey, c.workers,
		log.MemoryBytesKey, c.limit,
	)
	return c, nil
}

// RegisterHostBackend makes a host backend with opts the active backend.
func RegisterHostBackend(opts HostBackendOptions) {
	RegisterBackend(NewHostBackend(opts))
}

type hostContext struct {
	device  DeviceInfo
	workers int
	limit   int64
	logger  log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// run is held for reading while a kernel touches buffer memory and for writing
	// while buffers are released. Acquire it before mu.
	run sync.RWMutex

	mu        sync.Mutex
	allocated int64
	closed    bool
	live      map[*hostBuffer]struct{}
}

func (c *hostContext) Device() DeviceInfo {
	return c.device
}

func (c *hostContext) Allocated() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allocated
}

// Close cancels running kernels, waits for them to return and releases every buffer.
func (c *hostContext) Close() error {
	c.cancel()
	c.run.Lock()
	defer c.run.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for b := range c.live {
		b.release()
	}
	c.live = nil
	c.allocated = 0
	return nil
}

func (c *hostContext) NewBuffer(rows, cols int, precision Precision) (Buffer, error) {
	return c.alloc(rows, cols, precision)
}

func (c *hostContext) alloc(rows, cols int, precision Precision) (*hostBuffer, error) {
	if rows < 1 || cols < 1 {
		return nil, errors.NewValueError("device.NewBuffer", fmt.Sprintf("invalid shape %dx%d", rows, cols))
	}
	if precision != Float32 && precision != Float64 {
		return nil, errors.NewValueError("device.NewBuffer", "unknown precision "+precision.String())
	}
	bytes := int64(rows) * int64(cols) * int64(precision.Size())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrContextClosed
	}
	if c.limit > 0 && c.allocated+bytes > c.limit {
		c.logger.Warn("allocation over budget",
			log.ErrorCodeKey, log.ErrorOutOfMemory,
			"requested", bytes,
			"in_use", c.allocated,
			log.MemoryBytesKey, c.limit,
		)
		return nil, errors.Wrapf(ErrOutOfMemory, "requested %d bytes with %d of %d in use", bytes, c.allocated, c.limit)
	}
	c.allocated += bytes

	b := &hostBuffer{ctx: c, rows: rows, cols: cols, prec: precision, bytes: bytes}
	if precision == Float32 {
		b.f32 = make([]float32, rows*cols)
	} else {
		b.f64 = make([]float64, rows*cols)
	}
	c.live[b] = struct{}{}
	return b, nil
}

func (c *hostContext) free(b *hostBuffer) {
	c.run.Lock()
	defer c.run.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live[b]; !ok {
		return
	}
	delete(c.live, b)
	c.allocated -= b.bytes
	b.release()
}

// own checks that every operand is an open buffer of this context. On success the
// operands stay valid until done is called; done must run before free or Close on
// the same goroutine.
func (c *hostContext) own(bufs ...Buffer) (_ []*hostBuffer, done func(), err error) {
	c.run.RLock()
	defer func() {
		if err != nil {
			c.run.RUnlock()
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, ErrContextClosed
	}
	out := make([]*hostBuffer, len(bufs))
	for i, b := range bufs {
		hb, ok := b.(*hostBuffer)
		if !ok || hb.ctx != c {
			return nil, nil, ErrForeignBuffer
		}
		if _, live := c.live[hb]; !live {
			return nil, nil, ErrBufferClosed
		}
		if i > 0 && hb.prec != out[0].prec {
			return nil, nil, errors.Wrapf(ErrPrecisionMismatch, "%s and %s", out[0].prec, hb.prec)
		}
		out[i] = hb
	}
	return out, c.run.RUnlock, nil
}

// fanOut splits [0, items) into one contiguous range per worker.
func (c *hostContext) fanOut(items int, fn func(start, end int) error) error {
	if items <= 0 {
		return nil
	}
	workers := min(c.workers, items)
	chunk := (items + workers - 1) / workers

	g, ctx := errgroup.WithContext(c.ctx)
	for start := 0; start < items; start += chunk {
		start, end := start, min(start+chunk, items)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return ErrContextClosed
			}
			return fn(start, end)
		})
	}
	return g.Wait()
}

func (c *hostContext) Upload(m mat.Matrix, precision Precision) (Buffer, error) {
	rows, cols := m.Dims()
	c.run.RLock()
	b, err := c.alloc(rows, cols, precision)
	if err != nil {
		c.run.RUnlock()
		return nil, err
	}
	if precision == Float32 {
		err = upload(c, b.f32, m)
	} else {
		err = upload(c, b.f64, m)
	}
	c.run.RUnlock()
	if err != nil {
		c.free(b)
		return nil, err
	}
	return b, nil
}

func (c *hostContext) Gram(x Buffer) (Buffer, error) {
	bs, done, err := c.own(x)
	if err != nil {
		return nil, err
	}
	xb := bs[0]
	out, err := c.alloc(xb.cols, xb.cols, xb.prec)
	if err != nil {
		done()
		return nil, err
	}
	if xb.prec == Float32 {
		err = gram(c, out.f32, xb.f32, xb.rows, xb.cols)
	} else {
		err = gram(c, out.f64, xb.f64, xb.rows, xb.cols)
	}
	done()
	return c.result(out, err)
}

func (c *hostContext) MatTVec(x, v Buffer) (Buffer, error) {
	bs, done, err := c.own(x, v)
	if err != nil {
		return nil, err
	}
	xb, vb := bs[0], bs[1]
	if vb.rows != xb.rows || vb.cols != 1 {
		done()
		return nil, errors.NewDimensionError("device.MatTVec", xb.rows, vb.rows, 0)
	}
	out, err := c.alloc(xb.cols, 1, xb.prec)
	if err != nil {
		done()
		return nil, err
	}
	if xb.prec == Float32 {
		err = matTVec(c, out.f32, xb.f32, vb.f32, xb.rows, xb.cols)
	} else {
		err = matTVec(c, out.f64, xb.f64, vb.f64, xb.rows, xb.cols)
	}
	done()
	return c.result(out, err)
}

func (c *hostContext) MatVec(x, v Buffer) (Buffer, error) {
	bs, done, err := c.own(x, v)
	if err != nil {
		return nil, err
	}
	xb, vb := bs[0], bs[1]
	if vb.rows != xb.cols || vb.cols != 1 {
		done()
		return nil, errors.NewDimensionError("device.MatVec", xb.cols, vb.rows, 1)
	}
	out, err := c.alloc(xb.rows, 1, xb.prec)
	if err != nil {
		done()
		return nil, err
	}
	if xb.prec == Float32 {
		err = matVec(c, out.f32, xb.f32, vb.f32, xb.rows, xb.cols)
	} else {
		err = matVec(c, out.f64, xb.f64, vb.f64, xb.rows, xb.cols)
	}
	done()
	return c.result(out, err)
}

// result frees out when the kernel failed.
func (c *hostContext) result(out *hostBuffer, err error) (Buffer, error) {
	if err != nil {
		c.free(out)
		return nil, err
	}
	return out, nil
}

func (c *hostContext) CenterColumns(x Buffer) ([]float64, error) {
	bs, done, err := c.own(x)
	if err != nil {
		return nil, err
	}
	defer done()
	xb := bs[0]
	if xb.prec == Float32 {
		return centerColumns(c, xb.f32, xb.rows, xb.cols)
	}
	return centerColumns(c, xb.f64, xb.rows, xb.cols)
}

func (c *hostContext) ColumnNorms(x Buffer) ([]float64, error) {
	bs, done, err := c.own(x)
	if err != nil {
		return nil, err
	}
	defer done()
	xb := bs[0]
	if xb.prec == Float32 {
		return columnNorms(c, xb.f32, xb.rows, xb.cols)
	}
	return columnNorms(c, xb.f64, xb.rows, xb.cols)
}

func (c *hostContext) ScaleColumns(x Buffer, scale []float64) error {
	bs, done, err := c.own(x)
	if err != nil {
		return err
	}
	defer done()
	xb := bs[0]
	if len(scale) != xb.cols {
		return errors.NewDimensionError("device.ScaleColumns", xb.cols, len(scale), 1)
	}
	for j, s := range scale {
		if s == 0 {
			return errors.NewValueError("device.ScaleColumns", fmt.Sprintf("zero scale for column %d", j))
		}
	}
	if xb.prec == Float32 {
		return scaleColumns(c, xb.f32, scale, xb.rows)
	}
	return scaleColumns(c, xb.f64, scale, xb.rows)
}

func (c *hostContext) AddScalar(x Buffer, s float64) error {
	bs, done, err := c.own(x)
	if err != nil {
		return err
	}
	defer done()
	xb := bs[0]
	if xb.prec == Float32 {
		return addScalar(c, xb.f32, s)
	}
	return addScalar(c, xb.f64, s)
}

func (c *hostContext) CDSolve(g, q Buffer, params CDParams) (CDResult, error) {
	bs, done, err := c.own(g, q)
	if err != nil {
		return CDResult{}, err
	}
	defer done()
	gb, qb := bs[0], bs[1]
	p := gb.cols
	if gb.rows != p {
		return CDResult{}, errors.NewDimensionError("device.CDSolve", p, gb.rows, 0)
	}
	if qb.rows != p || qb.cols != 1 {
		return CDResult{}, errors.NewDimensionError("device.CDSolve", p, qb.rows, 0)
	}
	if params.MaxIter < 1 {
		return CDResult{}, errors.NewValidationError("max_iter", "must be at least 1", params.MaxIter)
	}

	var res CDResult
	if gb.prec == Float32 {
		res = cdSolve(gb.f32, qb.f32, p, params)
	} else {
		res = cdSolve(gb.f64, qb.f64, p, params)
	}
	if err := errors.CheckNumericalStability("device.CDSolve", res.Coef, res.NIter); err != nil {
		return CDResult{}, err
	}
	return res, nil
}

type hostBuffer struct {
	ctx   *hostContext
	rows  int
	cols  int
	prec  Precision
	bytes int64
	f32   []float32
	f64   []float64
}

func (b *hostBuffer) Rows() int            { return b.rows }
func (b *hostBuffer) Cols() int            { return b.cols }
func (b *hostBuffer) Precision() Precision { return b.prec }

func (b *hostBuffer) Download(dst []float64) error {
	_, done, err := b.ctx.own(b)
	if err != nil {
		return err
	}
	defer done()
	if len(dst) < b.rows*b.cols {
		return errors.NewDimensionError("device.Download", b.rows*b.cols, len(dst), 0)
	}
	if b.prec == Float32 {
		for i, v := range b.f32 {
			dst[i] = float64(v)
		}
		return nil
	}
	copy(dst, b.f64)
	return nil
}

func (b *hostBuffer) Close() error {
	b.ctx.free(b)
	return nil
}

func (b *hostBuffer) release() {
	b.f32 = nil
	b.f64 = nil
}

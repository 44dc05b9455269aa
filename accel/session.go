package accel

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/device"
	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

// session tracks the buffers one Fit or Predict allocates so they can be released
// on a shared context. A context opened by the session is closed with it.
type session struct {
	ctx   device.Context
	owned bool
	bufs  []device.Buffer
}

func openSession(shared device.Context) (*session, error) {
	if shared != nil {
		return &session{ctx: shared}, nil
	}
	ctx, err := device.Open(0)
	if err != nil {
		return nil, errors.Wrap(err, "open device context")
	}
	return &session{ctx: ctx, owned: true}, nil
}

func (s *session) keep(b device.Buffer, err error) (device.Buffer, error) {
	if err != nil {
		return nil, err
	}
	s.bufs = append(s.bufs, b)
	return b, nil
}

func (s *session) upload(m mat.Matrix, prec device.Precision) (device.Buffer, error) {
	return s.keep(s.ctx.Upload(m, prec))
}

func (s *session) close() {
	if s.owned {
		_ = s.ctx.Close()
		return
	}
	for _, b := range s.bufs {
		_ = b.Close()
	}
	s.bufs = nil
}

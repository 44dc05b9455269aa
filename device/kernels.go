package device

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Float is the element type of host buffers.
type Float interface {
	~float32 | ~float64
}

// All buffers are column-major: element (i, j) of an r-row buffer is at j*r+i.

func upload[T Float](c *hostContext, dst []T, m mat.Matrix) error {
	rows, cols := m.Dims()
	if raw, ok := m.(mat.RawMatrixer); ok {
		g := raw.RawMatrix()
		return c.fanOut(cols, func(start, end int) error {
			for j := start; j < end; j++ {
				col := dst[j*rows : (j+1)*rows]
				for i := range col {
					col[i] = T(g.Data[i*g.Stride+j])
				}
			}
			return nil
		})
	}
	return c.fanOut(cols, func(start, end int) error {
		for j := start; j < end; j++ {
			col := dst[j*rows : (j+1)*rows]
			for i := range col {
				col[i] = T(m.At(i, j))
			}
		}
		return nil
	})
}

// dot accumulates in float64 and rounds once to T.
func dot[T Float](a, b []T) T {
	var s float64
	for i, v := range a {
		s += float64(v) * float64(b[i])
	}
	return T(s)
}

// gram fills the upper triangle per column block and mirrors it.
func gram[T Float](c *hostContext, out, x []T, rows, cols int) error {
	return c.fanOut(cols, func(start, end int) error {
		for i := start; i < end; i++ {
			ci := x[i*rows : (i+1)*rows]
			for j := i; j < cols; j++ {
				v := dot(ci, x[j*rows:(j+1)*rows])
				out[j*cols+i] = v
				out[i*cols+j] = v
			}
		}
		return nil
	})
}

func matTVec[T Float](c *hostContext, out, x, v []T, rows, cols int) error {
	return c.fanOut(cols, func(start, end int) error {
		for j := start; j < end; j++ {
			out[j] = dot(x[j*rows:(j+1)*rows], v)
		}
		return nil
	})
}

func matVec[T Float](c *hostContext, out, x, v []T, rows, cols int) error {
	return c.fanOut(rows, func(start, end int) error {
		seg := out[start:end]
		for j := 0; j < cols; j++ {
			w := v[j]
			if w == 0 {
				continue
			}
			col := x[j*rows+start : j*rows+end]
			for i, xv := range col {
				seg[i] += xv * w
			}
		}
		return nil
	})
}

// centerColumns accumulates means in float64 so float32 buffers of many rows keep precision.
func centerColumns[T Float](c *hostContext, x []T, rows, cols int) ([]float64, error) {
	means := make([]float64, cols)
	err := c.fanOut(cols, func(start, end int) error {
		for j := start; j < end; j++ {
			col := x[j*rows : (j+1)*rows]
			var sum float64
			for _, v := range col {
				sum += float64(v)
			}
			mean := sum / float64(rows)
			means[j] = mean
			for i := range col {
				col[i] -= T(mean)
			}
		}
		return nil
	})
	return means, err
}

func columnNorms[T Float](c *hostContext, x []T, rows, cols int) ([]float64, error) {
	norms := make([]float64, cols)
	err := c.fanOut(cols, func(start, end int) error {
		for j := start; j < end; j++ {
			var sum float64
			for _, v := range x[j*rows : (j+1)*rows] {
				sum += float64(v) * float64(v)
			}
			norms[j] = math.Sqrt(sum)
		}
		return nil
	})
	return norms, err
}

func scaleColumns[T Float](c *hostContext, x []T, scale []float64, rows int) error {
	return c.fanOut(len(scale), func(start, end int) error {
		for j := start; j < end; j++ {
			inv := T(1 / scale[j])
			col := x[j*rows : (j+1)*rows]
			for i := range col {
				col[i] *= inv
			}
		}
		return nil
	})
}

func addScalar[T Float](c *hostContext, x []T, s float64) error {
	return c.fanOut(len(x), func(start, end int) error {
		for i := start; i < end; i++ {
			x[i] += T(s)
		}
		return nil
	})
}

func softThreshold[T Float](v, t T) T {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}

// cdSolve is covariance-update coordinate descent: h = G·w is kept current so a
// coordinate step costs O(p) instead of O(n). G and Xᵀy are read in T; the solver
// state (w, h) is float64.
// Random selection draws each step's coordinate uniformly with replacement from a
// PCG stream seeded with (Seed, Seed).
// The loop stops when max|Δw| / max|w| < tol, or when every coefficient is zero.
func cdSolve[T Float](g, q []T, p int, params CDParams) CDResult {
	w := make([]float64, p)
	h := make([]float64, p)
	l1, l2, tol := params.L1Reg, params.L2Reg, params.Tol

	var rng *rand.Rand
	if params.Random {
		rng = rand.New(rand.NewPCG(params.Seed, params.Seed))
	}

	res := CDResult{NIter: params.MaxIter}
	for iter := 1; iter <= params.MaxIter; iter++ {
		var wMax, dMax float64
		for f := 0; f < p; f++ {
			j := f
			if rng != nil {
				j = rng.IntN(p)
			}
			// G is symmetric, column j doubles as row j.
			col := g[j*p : (j+1)*p]
			gjj := float64(col[j])
			if gjj == 0 {
				continue
			}
			old := w[j]
			rho := float64(q[j]) - h[j] + gjj*old
			next := softThreshold(rho, l1) / (gjj + l2)
			if d := next - old; d != 0 {
				for k, gk := range col {
					h[k] += float64(gk) * d
				}
				w[j] = next
				dMax = max(dMax, math.Abs(d))
			}
			wMax = max(wMax, math.Abs(next))
		}

		if wMax == 0 || dMax/wMax < tol {
			res.NIter = iter
			res.Converged = true
			break
		}
	}

	res.Coef = w
	return res
}

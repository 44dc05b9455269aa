package linear_model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// cdResult は座標降下法の結果
type cdResult struct {
	coef      []float64
	dualGap   float64
	tol       float64 // ||y||² でスケール済みの許容誤差
	nIter     int
	converged bool
}

// enetCoordinateDescent は scikit-learn の enet_coordinate_descent と同じ手順で
//
//	(1/2)||y - Xw||² + l1Reg·||w||₁ + (l2Reg/2)·||w||²
//
// を最小化する。cols は X の列、y は（中心化済みの）目的変数。
// 残差 R = y - Xw を保持し、max|Δw|/max|w| が tol を下回ったとき（または最終スイープ）に
// 双対ギャップを計算して tol·||y||² 未満なら停止する。
func enetCoordinateDescent(cols [][]float64, y []float64, l1Reg, l2Reg float64, maxIter int, tol float64, rng *rand.Rand) cdResult {
	p := len(cols)
	w := make([]float64, p)
	R := make([]float64, len(y))
	copy(R, y)

	normCols := make([]float64, p)
	for j, col := range cols {
		normCols[j] = floats.Dot(col, col)
	}

	dwTol := tol
	res := cdResult{tol: tol * floats.Dot(y, y)}

	for iter := 0; iter < maxIter; iter++ {
		var wMax, dwMax float64
		for f := 0; f < p; f++ {
			j := f
			if rng != nil {
				j = rng.IntN(p)
			}
			if normCols[j] == 0 {
				continue
			}
			col := cols[j]
			old := w[j]

			// 座標 j の寄与を残差に戻す
			if old != 0 {
				floats.AddScaled(R, old, col)
			}
			tmp := floats.Dot(col, R)
			w[j] = math.Copysign(math.Max(math.Abs(tmp)-l1Reg, 0), tmp) / (normCols[j] + l2Reg)
			if w[j] != 0 {
				floats.AddScaled(R, -w[j], col)
			}

			dwMax = math.Max(dwMax, math.Abs(w[j]-old))
			wMax = math.Max(wMax, math.Abs(w[j]))
		}

		res.nIter = iter + 1
		if wMax == 0 || dwMax/wMax < dwTol || iter == maxIter-1 {
			res.dualGap = dualityGap(cols, y, R, w, l1Reg, l2Reg)
			if res.dualGap < res.tol {
				res.converged = true
				break
			}
		}
	}

	res.coef = w
	return res
}

// dualityGap は現在の w に対する双対ギャップ
func dualityGap(cols [][]float64, y, R, w []float64, l1Reg, l2Reg float64) float64 {
	// XtA = XᵀR - l2Reg·w
	var dualNorm float64
	for j, col := range cols {
		dualNorm = math.Max(dualNorm, math.Abs(floats.Dot(col, R)-l2Reg*w[j]))
	}

	rNorm2 := floats.Dot(R, R)
	wNorm2 := floats.Dot(w, w)

	var gap, scale float64
	if dualNorm > l1Reg {
		scale = l1Reg / dualNorm
		gap = 0.5 * (rNorm2 + rNorm2*scale*scale)
	} else {
		scale = 1
		gap = rNorm2
	}

	gap += l1Reg*floats.Norm(w, 1) - scale*floats.Dot(R, y) + 0.5*l2Reg*(1+scale*scale)*wNorm2
	return gap
}

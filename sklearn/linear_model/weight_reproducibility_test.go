package linear_model

import (
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/core/model"
	"github.com/YuminosukeSato/cdlinear/linear"
)

// trigData は y = 2*x1 + 3*x2 - x3 + 5 + noise の決定的なデータ
func trigData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, math.Sin(float64(i)/10.0))
		X.Set(i, 1, math.Cos(float64(i)/10.0))
		X.Set(i, 2, float64(i)/50.0)
		y.Set(i, 0, 2*X.At(i, 0)+3*X.At(i, 1)-X.At(i, 2)+5+float64(i%5)/100.0)
	}
	return X, y
}

// TestElasticNetWeightReproducibility は重みの完全な再現性をテスト
func TestElasticNetWeightReproducibility(t *testing.T) {
	X, y := trigData(100)

	model1 := NewElasticNet(linear.WithAlpha(0.01), linear.WithL1Ratio(0.7))
	if err := model1.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model1: %v", err)
	}

	weights, err := model1.ExportWeights()
	if err != nil {
		t.Fatalf("Failed to export weights: %v", err)
	}

	// JSON を往復させる
	jsonData, err := json.Marshal(weights)
	if err != nil {
		t.Fatalf("Failed to marshal weights: %v", err)
	}
	var decoded model.ModelWeights
	if err := json.Unmarshal(jsonData, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal weights: %v", err)
	}

	model2 := NewElasticNet()
	if err := model2.ImportWeights(&decoded); err != nil {
		t.Fatalf("Failed to import weights: %v", err)
	}

	if model2.Config() != model1.Config() {
		t.Errorf("config mismatch: %v vs %v", model2.Config(), model1.Config())
	}
	if model2.NIter() != model1.NIter() {
		t.Errorf("n_iter mismatch: %d vs %d", model2.NIter(), model1.NIter())
	}

	coef1, coef2 := model1.Coef(), model2.Coef()
	for i := range coef1 {
		if coef1[i] != coef2[i] {
			t.Errorf("Coefficient %d mismatch: %v vs %v", i, coef1[i], coef2[i])
		}
	}
	if model1.Intercept() != model2.Intercept() {
		t.Errorf("Intercept mismatch: %v vs %v", model1.Intercept(), model2.Intercept())
	}

	// 予測がビット単位で一致する
	pred1, err := model1.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	pred2, err := model2.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(pred1, pred2) {
		t.Error("predictions differ after weight import")
	}
}

// TestLassoRefitIsDeterministic は同じ設定での再学習が同じ重みになることをテスト
func TestLassoRefitIsDeterministic(t *testing.T) {
	X, y := trigData(80)
	opts := []linear.Option{linear.WithAlpha(0.05), linear.WithSelection(linear.Random), linear.WithRandomState(42)}

	a := NewLasso(opts...)
	b := NewLasso(opts...)
	if err := a.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	wa, _ := a.ExportWeights()
	wb, _ := b.ExportWeights()
	if wa.Checksum != wb.Checksum {
		t.Errorf("checksums differ: %s vs %s", wa.Checksum, wb.Checksum)
	}
	if _, ok := wa.Hyperparameters["l1_ratio"]; ok {
		t.Error("Lasso weights should not carry l1_ratio")
	}
}

// TestWeightValidation は不正な重みが拒否されることをテスト
func TestWeightValidation(t *testing.T) {
	X, y := trigData(50)
	m := NewLasso(linear.WithAlpha(0.01))
	if err := m.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	w, err := m.ExportWeights()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*model.ModelWeights)
	}{
		{"tampered coefficient", func(w *model.ModelWeights) { w.Coefficients[0] += 1e-9 }},
		{"tampered intercept", func(w *model.ModelWeights) { w.Intercept = 0 }},
		{"wrong model type", func(w *model.ModelWeights) { w.ModelType = "ElasticNet" }},
		{"missing version", func(w *model.ModelWeights) { w.Version = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := w.Clone()
			tt.mutate(bad)
			if err := NewLasso().ImportWeights(bad); err == nil {
				t.Error("expected error")
			}
		})
	}

	if err := NewLasso().ImportWeights(nil); err == nil {
		t.Error("expected error for nil weights")
	}
	if _, err := NewLasso().ExportWeights(); err == nil {
		t.Error("expected error exporting unfitted model")
	}
}

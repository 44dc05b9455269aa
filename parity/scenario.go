package parity

import (
	"fmt"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cdlinear/datasets"
	"github.com/YuminosukeSato/cdlinear/linear"
	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

// Family is an estimator family.
type Family string

const (
	Lasso      Family = "lasso"
	ElasticNet Family = "elasticnet"
)

// Families lists every family in grid order.
var Families = []Family{Lasso, ElasticNet}

// Alphas returns the regularization strengths a family is exercised with.
func (f Family) Alphas() []float64 {
	if f == ElasticNet {
		return []float64{0.2, 0.7}
	}
	return []float64{0.1, 0.001}
}

// ParseFamily accepts "lasso" and "elasticnet".
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToLower(strings.TrimSpace(s))) {
	case Lasso:
		return Lasso, nil
	case ElasticNet:
		return ElasticNet, nil
	default:
		return "", errors.NewValidationError("family", "must be 'lasso' or 'elasticnet'", s)
	}
}

// Tier groups scenarios by cost.
type Tier int

const (
	Unit Tier = iota
	Quality
	Stress
)

func (t Tier) String() string {
	switch t {
	case Unit:
		return "unit"
	case Quality:
		return "quality"
	case Stress:
		return "stress"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier accepts "unit", "quality" and "stress".
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unit":
		return Unit, nil
	case "quality":
		return Quality, nil
	case "stress":
		return Stress, nil
	default:
		return 0, errors.NewValidationError("tier", "must be 'unit', 'quality' or 'stress'", s)
	}
}

// ParseTiers parses a comma separated tier list. An empty list means Unit.
func ParseTiers(s string) ([]Tier, error) {
	if strings.TrimSpace(s) == "" {
		return []Tier{Unit}, nil
	}
	var tiers []Tier
	for _, part := range strings.Split(s, ",") {
		t, err := ParseTier(part)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, nil
}

// TiersFromEnv reads CDLINEAR_TIERS, defaulting to the unit tier.
func TiersFromEnv() ([]Tier, error) {
	return ParseTiers(os.Getenv(EnvTiers))
}

// Container is the matrix type the estimators receive.
type Container int

const (
	// Array is a dense row-major matrix.
	Array Container = iota
	// Table has named columns fea0..feaN stored column by column.
	Table
)

func (c Container) String() string {
	if c == Table {
		return "table"
	}
	return "array"
}

// Wrap presents a as this container kind, keeping its element type.
func (c Container) Wrap(a *datasets.Array) mat.Matrix {
	if c == Table {
		return datasets.NewTable(a, a.DType())
	}
	return a
}

// Axis is one value of a shape parameter and the tier it belongs to.
type Axis struct {
	Value int
	Tier  Tier
}

// Shape parameters of the grid.
var (
	RowsAxis        = []Axis{{20, Unit}, {5000, Quality}, {500000, Stress}}
	ColsAxis        = []Axis{{3, Unit}, {100, Quality}, {1000, Stress}}
	InformativeAxis = []Axis{{2, Unit}, {50, Quality}, {500, Stress}}
)

// Shape is the size of a generated dataset.
type Shape struct {
	Rows, Cols, Informative int
	tier                    Tier
}

// Tier is the most expensive tier among the three parameters.
func (s Shape) Tier() Tier { return s.tier }

// NewShape builds a shape, deriving the tier from the grid axes. Values not on an
// axis count as Unit.
func NewShape(rows, cols, informative int) Shape {
	return Shape{
		Rows:        rows,
		Cols:        cols,
		Informative: informative,
		tier:        max(axisTier(RowsAxis, rows), axisTier(ColsAxis, cols), axisTier(InformativeAxis, informative)),
	}
}

func axisTier(axis []Axis, v int) Tier {
	for _, a := range axis {
		if a.Value == v {
			return a.Tier
		}
	}
	return Unit
}

// Scenario is one comparison.
type Scenario struct {
	Family    Family
	Container Container
	Selection linear.Selection
	DType     datasets.DType
	Alpha     float64
	Shape     Shape
}

// Tier is the tier of the scenario's shape.
func (s Scenario) Tier() Tier { return s.Shape.Tier() }

// Name is a stable identifier usable as a subtest name.
func (s Scenario) Name() string {
	return fmt.Sprintf("%s/%s/%s/%s/alpha=%g/%dx%dx%d",
		s.Family, s.Container, s.DType, s.Selection, s.Alpha,
		s.Shape.Rows, s.Shape.Cols, s.Shape.Informative)
}

// Options are the hyperparameters both estimators of the scenario receive.
func (s Scenario) Options(cfg Config) []linear.Option {
	return []linear.Option{
		linear.WithAlpha(s.Alpha),
		linear.WithFitIntercept(true),
		linear.WithNormalize(false),
		linear.WithMaxIter(cfg.MaxIter),
		linear.WithSelection(s.Selection),
		linear.WithTol(cfg.Tol),
	}
}

// GridSpec lists the values each scenario parameter takes.
type GridSpec struct {
	Families    []Family
	Containers  []Container
	Selections  []linear.Selection
	DTypes      []datasets.DType
	Rows        []Axis
	Cols        []Axis
	Informative []Axis
}

// DefaultGridSpec covers both families, both selections, both element types and
// every shape, on the Array container only.
func DefaultGridSpec() GridSpec {
	return GridSpec{
		Families:    Families,
		Containers:  []Container{Array},
		Selections:  []linear.Selection{linear.Cyclic, linear.Random},
		DTypes:      []datasets.DType{datasets.Float32, datasets.Float64},
		Rows:        RowsAxis,
		Cols:        ColsAxis,
		Informative: InformativeAxis,
	}
}

// Shapes crosses rows, columns and informative counts, dropping combinations with
// more informative features than columns.
func (g GridSpec) Shapes() []Shape {
	var shapes []Shape
	for _, r := range g.Rows {
		for _, c := range g.Cols {
			for _, inf := range g.Informative {
				if inf.Value > c.Value {
					continue
				}
				shapes = append(shapes, Shape{
					Rows:        r.Value,
					Cols:        c.Value,
					Informative: inf.Value,
					tier:        max(r.Tier, c.Tier, inf.Tier),
				})
			}
		}
	}
	return shapes
}

// Scenarios crosses every parameter list of g.
func (g GridSpec) Scenarios() []Scenario {
	shapes := g.Shapes()
	var out []Scenario
	for _, family := range g.Families {
		for _, container := range g.Containers {
			for _, dtype := range g.DTypes {
				for _, selection := range g.Selections {
					for _, alpha := range family.Alphas() {
						for _, shape := range shapes {
							out = append(out, Scenario{
								Family:    family,
								Container: container,
								Selection: selection,
								DType:     dtype,
								Alpha:     alpha,
								Shape:     shape,
							})
						}
					}
				}
			}
		}
	}
	return out
}

// Grid returns DefaultGridSpec().Scenarios().
func Grid() []Scenario {
	return DefaultGridSpec().Scenarios()
}

// Select keeps the scenarios whose tier is one of tiers.
func Select(scenarios []Scenario, tiers ...Tier) []Scenario {
	want := make(map[Tier]bool, len(tiers))
	for _, t := range tiers {
		want[t] = true
	}
	var out []Scenario
	for _, s := range scenarios {
		if want[s.Tier()] {
			out = append(out, s)
		}
	}
	return out
}

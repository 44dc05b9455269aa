package datasets

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Array is a dense row-major matrix tagged with its element type.
type Array struct {
	*mat.Dense
	dtype DType
}

// NewArray copies m, rounding every element to dtype.
func NewArray(m mat.Matrix, dtype DType) *Array {
	d := mat.DenseCopyOf(m)
	if dtype == Float32 {
		raw := d.RawMatrix()
		for i := 0; i < raw.Rows; i++ {
			row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
			for j, v := range row {
				row[j] = dtype.Round(v)
			}
		}
	}
	return &Array{Dense: d, dtype: dtype}
}

// DType returns the element type.
func (a *Array) DType() DType { return a.dtype }

// Table is a column-major matrix with named columns fea0..feaN, the shape of a
// dataframe handed to an estimator.
type Table struct {
	names []string
	index map[string]int
	cols  [][]float64
	rows  int
	dtype DType
}

// ColumnName is the name of feature j in a Table.
func ColumnName(j int) string {
	return fmt.Sprintf("fea%d", j)
}

// NewTable copies m column by column, rounding to dtype.
func NewTable(m mat.Matrix, dtype DType) *Table {
	r, c := m.Dims()
	t := &Table{
		names: make([]string, c),
		index: make(map[string]int, c),
		cols:  make([][]float64, c),
		rows:  r,
		dtype: dtype,
	}
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, m)
		for i, v := range col {
			col[i] = dtype.Round(v)
		}
		t.cols[j] = col
		t.names[j] = ColumnName(j)
		t.index[t.names[j]] = j
	}
	return t
}

// Dims returns the number of rows and columns.
func (t *Table) Dims() (r, c int) { return t.rows, len(t.cols) }

// At returns the element in row i of column j.
func (t *Table) At(i, j int) float64 {
	if uint(j) >= uint(len(t.cols)) {
		panic(mat.ErrColAccess)
	}
	if uint(i) >= uint(t.rows) {
		panic(mat.ErrRowAccess)
	}
	return t.cols[j][i]
}

// T returns the transpose view.
func (t *Table) T() mat.Matrix { return mat.Transpose{Matrix: t} }

// DType returns the element type.
func (t *Table) DType() DType { return t.dtype }

// Names returns the column names in order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	j, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), t.cols[j]...), true
}

// ColView returns column j without copying.
func (t *Table) ColView(j int) mat.Vector {
	if uint(j) >= uint(len(t.cols)) {
		panic(mat.ErrColAccess)
	}
	return mat.NewVecDense(t.rows, t.cols[j])
}

var (
	_ Typed         = (*Array)(nil)
	_ Typed         = (*Table)(nil)
	_ mat.ColViewer = (*Table)(nil)
)

package dataset

import (
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Table is a header plus numeric rows. Rows are never shared between
// tables returned by this package.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// NewTable creates an empty table with the given columns.
func NewTable(columns []string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// NRows returns the number of rows.
func (t *Table) NRows() int { return len(t.Rows) }

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	j := t.ColumnIndex(name)
	if j < 0 {
		return nil, errors.NewSchemaError("table", []string{name}, nil)
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out, nil
}

// Select returns a new table with the named columns in the given order.
func (t *Table) Select(columns []string) (*Table, error) {
	idx := make([]int, len(columns))
	var missing []string
	for k, c := range columns {
		idx[k] = t.ColumnIndex(c)
		if idx[k] < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewSchemaError("table", missing, nil)
	}
	out := &Table{Columns: append([]string(nil), columns...), Rows: make([][]float64, len(t.Rows))}
	for i, row := range t.Rows {
		r := make([]float64, len(idx))
		for k, j := range idx {
			r[k] = row[j]
		}
		out.Rows[i] = r
	}
	return out, nil
}

// Matrix copies the named columns into an n×len(columns) matrix.
func (t *Table) Matrix(columns []string) (*mat.Dense, error) {
	if len(t.Rows) == 0 {
		return nil, errors.NewModelError("Table.Matrix", "empty data", errors.ErrEmptyData)
	}
	sel, err := t.Select(columns)
	if err != nil {
		return nil, err
	}
	m := mat.NewDense(len(sel.Rows), len(columns), nil)
	for i, row := range sel.Rows {
		m.SetRow(i, row)
	}
	return m, nil
}

// XY splits a prepared table into the feature matrix (FeatureNames order)
// and the label column vector.
func (t *Table) XY() (X, y *mat.Dense, err error) {
	X, err = t.Matrix(FeatureNames)
	if err != nil {
		return nil, nil, err
	}
	y, err = t.Matrix([]string{LabelColumn})
	if err != nil {
		return nil, nil, err
	}
	return X, y, nil
}

// ClassCounts returns how many rows carry each binary label.
func (t *Table) ClassCounts() (notGood, good int, err error) {
	labels, err := t.Column(LabelColumn)
	if err != nil {
		return 0, 0, err
	}
	for _, v := range labels {
		if v == 1 {
			good++
		} else {
			notGood++
		}
	}
	return notGood, good, nil
}

package dataset

import (
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

// Upload is a user supplied table ready for prediction.
type Upload struct {
	// Source is the uploaded file name.
	Source string

	// Table holds every uploaded column in upload order.
	Table *Table

	// Features is n×12 in FeatureNames order.
	Features *mat.Dense

	// Labels is the binary label per row, or nil when the upload has no
	// quality column. Raw quality scores are binarized.
	Labels []float64
}

// HasLabels reports whether the upload can be scored.
func (u *Upload) HasLabels() bool { return u.Labels != nil }

// NRows returns the number of uploaded rows.
func (u *Upload) NRows() int { return u.Table.NRows() }

// ParseUpload reads a CSV or XLSX upload, chosen by the file extension. The
// header must contain the 12 feature columns in any order and may contain
// quality; anything else is a schema error.
func ParseUpload(name string, r io.Reader) (*Upload, error) {
	var (
		t   *Table
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		t, err = readXLSX(r, name)
	case ".csv", ".txt", "":
		t, err = ReadCSV(r, name)
	default:
		return nil, errors.NewSchemaErrorf(name, "unsupported file type %q (use .csv or .xlsx)", filepath.Ext(name))
	}
	if err != nil {
		return nil, err
	}
	return NewUpload(name, t)
}

// NewUpload validates t against the upload contract.
func NewUpload(source string, t *Table) (*Upload, error) {
	allowed := append(append([]string(nil), FeatureNames...), LabelColumn)
	missing, unknown := diffColumns(allowed, t.Columns)
	missing = dropLabel(missing)
	if len(missing) > 0 || len(unknown) > 0 {
		return nil, errors.NewSchemaError(source, missing, unknown)
	}
	if t.NRows() == 0 {
		return nil, errors.NewSchemaErrorf(source, "no data rows")
	}
	for i, row := range t.Rows {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewSchemaErrorf(source, "row %d column %q: missing or non-finite value", i+2, t.Columns[j])
			}
		}
	}

	X, err := t.Matrix(FeatureNames)
	if err != nil {
		return nil, err
	}
	u := &Upload{Source: source, Table: t, Features: X}
	if t.ColumnIndex(LabelColumn) >= 0 {
		labels, _ := t.Column(LabelColumn)
		for i, v := range labels {
			if v != 0 && v != 1 {
				labels[i] = Binarize(v)
			}
		}
		u.Labels = labels
	}
	return u, nil
}

func dropLabel(cols []string) []string {
	out := cols[:0]
	for _, c := range cols {
		if c != LabelColumn {
			out = append(out, c)
		}
	}
	return out
}

// readXLSX reads the first sheet of a workbook.
func readXLSX(r io.Reader, source string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.NewSchemaErrorf(source, "not a valid xlsx workbook: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %q of %s", sheet, source)
	}
	return parseRecords(rows, source)
}

// WriteXLSX writes the table to the first sheet of a new workbook.
func (t *Table) WriteXLSX(w io.Writer, sheet string) error {
	return WriteXLSXRows(w, sheet, t.Columns, len(t.Rows), func(i int) []interface{} {
		row := make([]interface{}, len(t.Rows[i]))
		for j, v := range t.Rows[i] {
			row[j] = v
		}
		return row
	})
}

// WriteXLSXRows writes a header and n rows produced by row to a new
// workbook. Cells keep their Go types, so numbers stay numeric.
func WriteXLSXRows(w io.Writer, sheet string, header []string, n int, row func(i int) []interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return errors.Wrap(err, "rename sheet")
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return errors.Wrap(err, "open stream writer")
	}
	head := make([]interface{}, len(header))
	for j, h := range header {
		head[j] = h
	}
	if err := sw.SetRow("A1", head); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row(i)); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return errors.Wrap(err, "flush xlsx")
	}
	return errors.Wrap(f.Write(w), "encode xlsx")
}

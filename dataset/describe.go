package dataset

import (
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// ColumnStats is one column of a pandas-style describe() table.
type ColumnStats struct {
	Name  string
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Q25   float64
	Q50   float64
	Q75   float64
	Max   float64
}

// Describe summarises every column of t. Std is the sample standard
// deviation.
func Describe(t *Table) ([]ColumnStats, error) {
	if t.NRows() == 0 {
		return nil, errors.NewModelError("Describe", "empty data", errors.ErrEmptyData)
	}
	out := make([]ColumnStats, len(t.Columns))
	for j, name := range t.Columns {
		col, _ := t.Column(name)
		data := stats.Float64Data(col)

		cs := ColumnStats{Name: name, Count: len(col)}
		var err error
		if cs.Mean, err = stats.Mean(data); err != nil {
			return nil, errors.Wrapf(err, "mean of %q", name)
		}
		if len(col) > 1 {
			if cs.Std, err = stats.StandardDeviationSample(data); err != nil {
				return nil, errors.Wrapf(err, "std of %q", name)
			}
		}
		if cs.Min, err = stats.Min(data); err != nil {
			return nil, errors.Wrapf(err, "min of %q", name)
		}
		if cs.Max, err = stats.Max(data); err != nil {
			return nil, errors.Wrapf(err, "max of %q", name)
		}
		if cs.Q50, err = stats.Median(data); err != nil {
			return nil, errors.Wrapf(err, "median of %q", name)
		}
		if cs.Q25, err = percentile(data, 25); err != nil {
			return nil, errors.Wrapf(err, "25th percentile of %q", name)
		}
		if cs.Q75, err = percentile(data, 75); err != nil {
			return nil, errors.Wrapf(err, "75th percentile of %q", name)
		}
		out[j] = cs
	}
	return out, nil
}

// percentile interpolates like stats.Percentile and falls back to the
// nearest rank when the sample is too small to interpolate.
func percentile(data stats.Float64Data, p float64) (float64, error) {
	v, err := stats.Percentile(data, p)
	if err != nil {
		return stats.PercentileNearestRank(data, p)
	}
	return v, nil
}

// Correlation returns the Pearson correlation matrix of all columns of t,
// in column order. Constant columns correlate 0 with everything else.
func Correlation(t *Table) (*mat.SymDense, error) {
	if t.NRows() < 2 {
		return nil, errors.NewModelError("Correlation", "need at least two rows", errors.ErrEmptyData)
	}
	k := len(t.Columns)
	cols := make([]stats.Float64Data, k)
	for j, name := range t.Columns {
		cols[j], _ = t.Column(name)
	}
	corr := mat.NewSymDense(k, nil)
	for a := 0; a < k; a++ {
		corr.SetSym(a, a, 1)
		for b := a + 1; b < k; b++ {
			r, err := stats.Correlation(cols[a], cols[b])
			if err != nil {
				return nil, errors.Wrapf(err, "correlate %q with %q", t.Columns[a], t.Columns[b])
			}
			corr.SetSym(a, b, r)
		}
	}
	return corr, nil
}

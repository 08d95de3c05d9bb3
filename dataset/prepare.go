package dataset

import (
	"fmt"
	"math"
	"sort"

	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
)

// Prepared is the combined red and white table ready for training.
type Prepared struct {
	Table *Table

	nRed, nWhite int
	rawQuality   map[int]int
}

// Summary holds the diagnostics printed while preparing the dataset.
type Summary struct {
	Red      int
	White    int
	Total    int
	Features int
	Good     int
	NotGood  int

	// RawQuality counts rows per original quality score.
	RawQuality map[int]int
}

// GoodRatio is the fraction of rows labelled good.
func (s Summary) GoodRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Good) / float64(s.Total)
}

// QualityScores returns the raw scores present, ascending.
func (s Summary) QualityScores() []int {
	scores := make([]int, 0, len(s.RawQuality))
	for q := range s.RawQuality {
		scores = append(scores, q)
	}
	sort.Ints(scores)
	return scores
}

// Prepare tags red rows with wine_type=1 and white rows with wine_type=0,
// concatenates red then white, replaces the raw quality score with the
// binary label and checks that no value is missing. Both sources must carry
// the same columns.
func Prepare(red, white *Table) (*Prepared, error) {
	rawColumns := append(append([]string(nil), RawFeatureNames...), LabelColumn)
	for _, src := range []struct {
		name string
		t    *Table
	}{{"red", red}, {"white", white}} {
		if src.t == nil || src.t.NRows() == 0 {
			return nil, errors.NewModelError("Prepare", src.name+" source is empty", errors.ErrEmptyData)
		}
		if missing, unknown := diffColumns(rawColumns, src.t.Columns); len(missing) > 0 || len(unknown) > 0 {
			return nil, errors.NewSchemaError(src.name, missing, unknown)
		}
	}
	if missing, unknown := diffColumns(red.Columns, white.Columns); len(missing) > 0 || len(unknown) > 0 {
		return nil, errors.NewSchemaError("white", missing, unknown)
	}

	p := &Prepared{
		Table:      NewTable(PreparedColumns),
		nRed:       red.NRows(),
		nWhite:     white.NRows(),
		rawQuality: make(map[int]int),
	}
	p.Table.Rows = make([][]float64, 0, p.nRed+p.nWhite)

	missing := 0
	for _, src := range []struct {
		t        *Table
		wineType float64
	}{{red, WineTypeRed}, {white, WineTypeWhite}} {
		sel, err := src.t.Select(rawColumns)
		if err != nil {
			return nil, err
		}
		for _, raw := range sel.Rows {
			row := make([]float64, len(PreparedColumns))
			copy(row, raw[:len(RawFeatureNames)])
			row[len(RawFeatureNames)] = src.wineType

			score := raw[len(RawFeatureNames)]
			for _, v := range raw {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					missing++
				}
			}
			if !math.IsNaN(score) {
				p.rawQuality[int(score)]++
			}
			row[len(row)-1] = Binarize(score)
			p.Table.Rows = append(p.Table.Rows, row)
		}
	}
	if missing > 0 {
		return nil, errors.NewValueError("Prepare", fmt.Sprintf("%d missing values found", missing))
	}
	return p, nil
}

// Summary returns the preparation diagnostics.
func (p *Prepared) Summary() Summary {
	notGood, good, _ := p.Table.ClassCounts()
	hist := make(map[int]int, len(p.rawQuality))
	for q, n := range p.rawQuality {
		hist[q] = n
	}
	return Summary{
		Red:        p.nRed,
		White:      p.nWhite,
		Total:      p.Table.NRows(),
		Features:   len(FeatureNames),
		Good:       good,
		NotGood:    notGood,
		RawQuality: hist,
	}
}

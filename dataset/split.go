package dataset

import (
	"math"
	"math/rand"
	"sort"

	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Split holds a train/test partition. All matrices are fresh copies.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense

	// TrainIndex and TestIndex are the source row of every partition row.
	TrainIndex []int
	TestIndex  []int
}

// StratifiedSplit partitions X and y into train and test sets that keep the
// class proportions of y. The test set has ceil(testSize·n) rows, shared
// between classes by largest remainder. The same inputs and seed always
// produce the same partition; X and y are not modified.
func StratifiedSplit(X, y mat.Matrix, testSize float64, seed int64) (*Split, error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	n, _, err := model.ValidateXY("StratifiedSplit", X, y)
	if err != nil {
		return nil, err
	}
	classes, encoded := model.EncodeLabels(y)
	if len(classes) < 2 {
		return nil, errors.NewModelError("StratifiedSplit", "cannot stratify", errors.ErrSingleClass)
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < len(classes) || n-nTest < len(classes) {
		return nil, errors.NewValidationError("test_size",
			"train and test partitions must each hold at least one sample per class", testSize)
	}

	members := make([][]int, len(classes))
	for i, c := range encoded {
		members[c] = append(members[c], i)
	}
	perClass := allocate(nTest, n, members)

	rng := rand.New(rand.NewSource(seed))
	var train, test []int
	for c, idx := range members {
		perm := rng.Perm(len(idx))
		for k, p := range perm {
			if k < perClass[c] {
				test = append(test, idx[p])
			} else {
				train = append(train, idx[p])
			}
		}
	}
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })

	return &Split{
		XTrain:     takeRows(X, train),
		XTest:      takeRows(X, test),
		YTrain:     takeRows(y, train),
		YTest:      takeRows(y, test),
		TrainIndex: train,
		TestIndex:  test,
	}, nil
}

// allocate shares total test rows between classes proportionally to their
// size. Leftover rows go to the largest fractional parts, lower class first
// on ties, never exceeding a class's size.
func allocate(total, n int, members [][]int) []int {
	counts := make([]int, len(members))
	type rem struct {
		class int
		frac  float64
	}
	rems := make([]rem, len(members))
	assigned := 0
	for c, idx := range members {
		exact := float64(total) * float64(len(idx)) / float64(n)
		counts[c] = int(math.Floor(exact))
		assigned += counts[c]
		rems[c] = rem{class: c, frac: exact - float64(counts[c])}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for k := 0; assigned < total; k = (k + 1) % len(rems) {
		c := rems[k].class
		if counts[c] < len(members[c]) {
			counts[c]++
			assigned++
		}
	}
	return counts
}

func takeRows(m mat.Matrix, rows []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	buf := make([]float64, c)
	for i, r := range rows {
		mat.Row(buf, r, m)
		out.SetRow(i, buf)
	}
	return out
}

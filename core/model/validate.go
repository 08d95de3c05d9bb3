package model

import (
	"sort"

	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ValidateXY checks the shapes and values shared by every Fit: X non-empty,
// y a single column with one row per sample, no NaN or Inf anywhere.
func ValidateXY(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if yRows != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if err := errors.CheckMatrix(op, X, nSamples, nFeatures); err != nil {
		return 0, 0, err
	}
	if err := errors.CheckMatrix(op, y, yRows, 1); err != nil {
		return 0, 0, err
	}
	return nSamples, nFeatures, nil
}

// EncodeLabels returns the sorted distinct labels of y and, for every row,
// the index of its label in that list.
func EncodeLabels(y mat.Matrix) (classes []float64, encoded []int) {
	n, _ := y.Dims()
	seen := make(map[float64]struct{})
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			classes = append(classes, v)
		}
	}
	sort.Float64s(classes)

	index := make(map[float64]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded = make([]int, n)
	for i := 0; i < n; i++ {
		encoded[i] = index[y.At(i, 0)]
	}
	return classes, encoded
}

// Package preprocessing は特徴量の前処理（標準化）を提供します。
package preprocessing

import (
	"bytes"
	"encoding/gob"
	"math"

	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	_ model.Transformer     = (*StandardScaler)(nil)
	_ model.ParameterGetter = (*StandardScaler)(nil)
)

// StandardScaler はscikit-learn互換の標準化スケーラー
// 学習データの列ごとの平均と母標準偏差を記憶し、データを平均0、標準偏差1に変換する。
// 分散が0の列はスケール1として扱う。
type StandardScaler struct {
	state *model.StateManager

	withMean bool
	withStd  bool

	mean_  []float64
	scale_ []float64
}

// StandardScalerOption はStandardScalerの関数オプション
type StandardScalerOption func(*StandardScaler)

// WithMean は平均を引くかどうかを設定する (デフォルト: true)
func WithMean(v bool) StandardScalerOption {
	return func(s *StandardScaler) { s.withMean = v }
}

// WithStd は標準偏差で割るかどうかを設定する (デフォルト: true)
func WithStd(v bool) StandardScalerOption {
	return func(s *StandardScaler) { s.withStd = v }
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler()
//	XTrain, err := scaler.FitTransform(XTrain)
//	XTest, err := scaler.Transform(XTest)
func NewStandardScaler(opts ...StandardScalerOption) *StandardScaler {
	s := &StandardScaler{
		state:    model.NewStateManager(),
		withMean: true,
		withStd:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fit は訓練データから統計情報（平均、標準偏差）を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := errors.CheckMatrix("StandardScaler.Fit", X, r, c); err != nil {
		return err
	}

	mean := make([]float64, c)
	scale := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		m, variance := stat.PopMeanVariance(col, nil)

		mean[j] = 0
		if s.withMean {
			mean[j] = m
		}

		scale[j] = 1
		if s.withStd {
			// 標準偏差が0に近い場合は1のまま（ゼロ除算を避ける）
			if sd := math.Sqrt(variance); sd > 1e-12 {
				scale[j] = sd
			}
		}
	}

	s.mean_ = mean
	s.scale_ = scale
	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
// スケーラー自身の状態は変更しない。
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	if err := s.state.CheckFeatures("StandardScaler.Transform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-s.mean_[j])/s.scale_[j])
		}
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// IsFitted は学習済みかどうかを返す
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// Params は学習済みの平均と標準偏差のコピーを返す。未学習の場合はnil。
func (s *StandardScaler) Params() (mean, scale []float64) {
	if !s.state.IsFitted() {
		return nil, nil
	}
	return append([]float64(nil), s.mean_...), append([]float64(nil), s.scale_...)
}

// GetParams はスケーラーのハイパーパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.withMean,
		"with_std":  s.withStd,
	}
}

// scalerSnapshot はgobで保存する内容
type scalerSnapshot struct {
	State    model.ModelState
	WithMean bool
	WithStd  bool
	Mean     []float64
	Scale    []float64
}

// GobEncode は学習済みの状態をgobでエンコードする
func (s *StandardScaler) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(scalerSnapshot{
		State:    s.state.GetState(),
		WithMean: s.withMean,
		WithStd:  s.withStd,
		Mean:     s.mean_,
		Scale:    s.scale_,
	})
	return buf.Bytes(), err
}

// GobDecode はGobEncodeの出力から状態を復元する
func (s *StandardScaler) GobDecode(data []byte) error {
	var snap scalerSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	if s.state == nil {
		s.state = model.NewStateManager()
	}
	s.state.SetState(snap.State)
	s.withMean = snap.WithMean
	s.withStd = snap.WithStd
	s.mean_ = snap.Mean
	s.scale_ = snap.Scale
	return nil
}

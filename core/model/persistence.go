package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する
//
// 一時ファイルに書き込んでからリネームするため、読み込み側が
// 書きかけのファイルを観測することはない。
//
// 使用例:
//
//	rf := ensemble.NewRandomForestClassifier()
//	// ... モデルの学習 ...
//	err := model.SaveModel(rf, "model/random_forest.gob")
func SaveModel(m interface{}, filename string) error {
	return WriteFileAtomic(filename, func(w io.Writer) error {
		return SaveModelToWriter(m, w)
	})
}

// LoadModel はファイルからモデルを読み込む
//
// ファイルが存在しない場合、返されるエラーは errors.ErrArtifactNotFound を
// 包んだ ArtifactError になる。
//
//	rf := ensemble.NewRandomForestClassifier()
//	err := model.LoadModel(rf, "model/random_forest.gob")
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewArtifactError("load", filename, errors.ErrArtifactNotFound)
		}
		return errors.NewArtifactError("load", filename, err)
	}
	defer file.Close()

	if err := LoadModelFromReader(m, file); err != nil {
		return errors.NewArtifactError("load", filename, err)
	}
	return nil
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

// WriteFileAtomic は同じディレクトリの一時ファイルへ write で書き込み、
// 成功した場合のみ filename へリネームする。親ディレクトリは必要に応じて作成する。
func WriteFileAtomic(filename string, write func(w io.Writer) error) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewArtifactError("save", filename, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".tmp-*")
	if err != nil {
		return errors.NewArtifactError("save", filename, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := write(tmp); err != nil {
		tmp.Close()
		cleanup()
		return errors.NewArtifactError("save", filename, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.NewArtifactError("save", filename, err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		cleanup()
		return errors.NewArtifactError("save", filename, err)
	}
	return nil
}

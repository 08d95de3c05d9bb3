package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/iitrpratibha/ml-wine-quality-classification/core/model"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/log"
)

// ReadRawCSV reads one UCI wine quality file. The UCI files are
// semicolon-separated with a quoted header; comma-separated copies are
// accepted too. Empty and "NA" cells are read as NaN and rejected later by
// Prepare.
func ReadRawCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open raw dataset %s", path)
	}
	defer f.Close()

	t, err := ReadCSV(f, path)
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("dataset").Debug("Raw dataset loaded",
		log.SourceKey, path,
		log.SamplesKey, t.NRows(),
	)
	return t, nil
}

// ReadCSV parses a delimited table with one header row. The delimiter is
// whichever of ';' and ',' occurs more often in the header line.
func ReadCSV(r io.Reader, source string) (*Table, error) {
	br := bufio.NewReader(r)
	first, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read %s", source)
	}
	first = strings.TrimPrefix(first, "\ufeff")
	if strings.TrimSpace(first) == "" {
		return nil, errors.NewSchemaErrorf(source, "no header row")
	}

	cr := csv.NewReader(io.MultiReader(strings.NewReader(first), br))
	cr.Comma = sniffDelimiter(first)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", source)
	}
	return parseRecords(records, source)
}

func sniffDelimiter(header string) rune {
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

// parseRecords turns string records into a Table. Header cells are trimmed
// of whitespace and a UTF-8 byte order mark.
func parseRecords(records [][]string, source string) (*Table, error) {
	if len(records) == 0 {
		return nil, errors.NewSchemaErrorf(source, "no header row")
	}
	header := make([]string, len(records[0]))
	seen := make(map[string]bool, len(header))
	for j, h := range records[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if seen[h] {
			return nil, errors.NewSchemaErrorf(source, "duplicate column %q", h)
		}
		seen[h] = true
		header[j] = h
	}

	t := &Table{Columns: header, Rows: make([][]float64, 0, len(records)-1)}
	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		if len(rec) > len(header) {
			return nil, errors.NewSchemaErrorf(source, "row %d has %d cells, header has %d", i+2, len(rec), len(header))
		}
		row := make([]float64, len(header))
		for j := range header {
			cell := ""
			if j < len(rec) {
				cell = rec[j]
			}
			v, err := parseCell(cell)
			if err != nil {
				return nil, errors.NewSchemaErrorf(source, "row %d column %q: %q is not a number", i+2, header[j], cell)
			}
			row[j] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToUpper(cell) {
	case "", "NA", "NAN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

// WriteCSV writes t comma-separated with one header row. The file is
// replaced atomically.
func WriteCSV(path string, t *Table) error {
	return model.WriteFileAtomic(path, func(w io.Writer) error {
		return t.WriteCSV(w)
	})
}

// WriteCSV writes the table to w. Values use the shortest representation
// that parses back to the same float64.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for j, v := range row {
			rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadPreparedCSV loads the prepared table. Columns may appear in any
// order but must be exactly the 12 features plus quality; the result is in
// PreparedColumns order. Labels must be 0 or 1 and no value may be missing.
func ReadPreparedCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewArtifactError("load", path, errors.ErrArtifactNotFound)
		}
		return nil, errors.NewArtifactError("load", path, err)
	}
	defer f.Close()

	raw, err := ReadCSV(f, path)
	if err != nil {
		return nil, err
	}
	if missing, unknown := diffColumns(PreparedColumns, raw.Columns); len(missing) > 0 || len(unknown) > 0 {
		return nil, errors.NewSchemaError(path, missing, unknown)
	}
	t, err := raw.Select(PreparedColumns)
	if err != nil {
		return nil, err
	}
	if t.NRows() == 0 {
		return nil, errors.NewModelError("ReadPreparedCSV", "empty data", errors.ErrEmptyData)
	}

	label := len(PreparedColumns) - 1
	for i, row := range t.Rows {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewSchemaErrorf(path, "row %d column %q: missing or non-finite value", i+2, t.Columns[j])
			}
		}
		if row[label] != 0 && row[label] != 1 {
			return nil, errors.NewSchemaErrorf(path, "row %d: label %v is not 0 or 1", i+2, row[label])
		}
	}
	return t, nil
}

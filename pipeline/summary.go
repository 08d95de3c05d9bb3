package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/iitrpratibha/ml-wine-quality-classification/pkg/errors"
)

// Summary maps model display name to Scores, keeping insertion order. It
// encodes to JSON as an object whose keys keep that order.
type Summary struct {
	names  []string
	scores map[string]Scores
}

// NewSummary creates an empty summary.
func NewSummary() *Summary {
	return &Summary{scores: make(map[string]Scores)}
}

// Set adds or replaces the scores of a model. New names are appended.
func (s *Summary) Set(name string, sc Scores) {
	if s.scores == nil {
		s.scores = make(map[string]Scores)
	}
	if _, ok := s.scores[name]; !ok {
		s.names = append(s.names, name)
	}
	s.scores[name] = sc
}

// Get returns the scores of a model.
func (s *Summary) Get(name string) (Scores, bool) {
	sc, ok := s.scores[name]
	return sc, ok
}

// Names returns the model names in order.
func (s *Summary) Names() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of models.
func (s *Summary) Len() int { return len(s.names) }

// Best returns the model with the highest value of m. Ties go to the
// earlier model. An empty summary returns "" and 0.
func (s *Summary) Best(m Metric) (name string, score float64) {
	for i, n := range s.names {
		v := s.scores[n].Get(m)
		if i == 0 || v > score {
			name, score = n, v
		}
	}
	return name, score
}

// Worst returns the model with the lowest value of m.
func (s *Summary) Worst(m Metric) (name string, score float64) {
	for i, n := range s.names {
		v := s.scores[n].Get(m)
		if i == 0 || v < score {
			name, score = n, v
		}
	}
	return name, score
}

// TableRow is one model's line of the comparison table.
type TableRow struct {
	Name   string
	Values []float64
}

// Table returns one row per model with values in Metrics order.
func (s *Summary) Table() []TableRow {
	rows := make([]TableRow, len(s.names))
	for i, n := range s.names {
		rows[i] = TableRow{Name: n, Values: s.scores[n].Values()}
	}
	return rows
}

// MarshalJSON writes {"<model>": {"Accuracy": ..., ...}, ...} in order.
func (s *Summary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.scores[n])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object form, keeping key order.
func (s *Summary) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("summary: expected a JSON object")
	}
	*s = Summary{scores: make(map[string]Scores)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errors.Newf("summary: unexpected key %v", tok)
		}
		var sc Scores
		if err := dec.Decode(&sc); err != nil {
			return errors.Wrapf(err, "summary: scores of %q", name)
		}
		s.Set(name, sc)
	}
	_, err = dec.Token()
	return err
}

// WriteCSV writes the tabular form: a blank-named index column then one
// column per metric.
func (s *Summary) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{""}
	for _, m := range Metrics {
		header = append(header, string(m))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range s.Table() {
		rec := []string{row.Name}
		for _, v := range row.Values {
			rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSummaryCSV parses the form written by WriteCSV. Metric columns may
// appear in any order.
func ReadSummaryCSV(r io.Reader) (*Summary, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "summary csv")
	}
	if len(records) == 0 {
		return nil, errors.New("summary csv: no header")
	}
	cols := make([]Metric, len(records[0]))
	for j, h := range records[0][1:] {
		m, ok := ParseMetric(h)
		if !ok {
			return nil, errors.Newf("summary csv: unknown metric %q", h)
		}
		cols[j+1] = m
	}
	s := NewSummary()
	for _, rec := range records[1:] {
		var sc Scores
		for j := 1; j < len(rec); j++ {
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "summary csv: %s %s", rec[0], cols[j])
			}
			sc.set(cols[j], v)
		}
		s.Set(rec[0], sc)
	}
	return s, nil
}

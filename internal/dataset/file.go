package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileLoader reads <split>.jsonl or <split>.csv files from Dir.
type FileLoader struct {
	Dir string
}

// Load reads the requested splits (DefaultSplits when none are given).
// Missing default splits are skipped; an explicitly requested missing split
// is an error.
func (l FileLoader) Load(ctx context.Context, splits ...string) (DatasetDict, error) {
	explicit := len(splits) > 0
	if !explicit {
		splits = DefaultSplits
	}
	out := DatasetDict{}
	for _, name := range splits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := l.loadSplit(name)
		if errors.Is(err, os.ErrNotExist) && !explicit {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[name] = s
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no split files (*.jsonl, *.csv) found in %s", l.Dir)
	}
	return out, nil
}

func (l FileLoader) loadSplit(name string) (Split, error) {
	for _, ext := range []string{".jsonl", ".csv"} {
		path := filepath.Join(l.Dir, name+ext)
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var s Split
		if ext == ".jsonl" {
			s, err = ReadJSONL(f)
		} else {
			s, err = ReadCSV(f)
		}
		if err != nil {
			return nil, fmt.Errorf("split %s (%s): %w", name, path, err)
		}
		logf(l.Dir, "%s: %d rows from %s", name, len(s), filepath.Base(path))
		return s, nil
	}
	return nil, fmt.Errorf("split %s in %s: %w", name, l.Dir, os.ErrNotExist)
}

// ReadJSONL parses one {"text":..., "label":...} object per line. Blank
// lines are skipped.
func ReadJSONL(r io.Reader) (Split, error) {
	var s Split
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for n := 0; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var row rawRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		ex, err := row.example()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		s = append(s, ex)
	}
	return s, sc.Err()
}

// ReadCSV parses a file with a header containing "text" and "label" columns.
func ReadCSV(r io.Reader) (Split, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	textCol, labelCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "text":
			textCol = i
		case "label":
			labelCol = i
		}
	}
	if textCol < 0 || labelCol < 0 {
		return nil, fmt.Errorf("header %v must contain text and label columns", header)
	}

	var s Split
	for n := 0; ; n++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return nil, err
		}
		label, _ := json.Marshal(rec[labelCol])
		ex, err := rawRow{Text: rec[textCol], Label: label}.example()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		s = append(s, ex)
	}
}

// Package manifest reads lists of audio object keys for batch submission.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrEmpty is returned when a manifest holds no keys.
var ErrEmpty = errors.New("manifest: no object keys")

// keyHeaders are header fragments that mark the key column.
var keyHeaders = []string{"s3objectkey", "object key", "objectkey", "key", "recording", "audio", "file"}

// Load reads object keys from path. Spreadsheets (.xlsx) use the first sheet
// and pick the key column by header; anything else is read as CSV or plain
// text, one key per line in the first column. Keys keep manifest order with
// duplicates and blanks dropped.
func Load(path string) ([]string, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readSpreadsheet(path)
	default:
		rows, err = readDelimited(path)
	}
	if err != nil {
		return nil, err
	}
	return extract(rows)
}

func readSpreadsheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("manifest: %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("manifest: read rows: %w", err)
	}
	return rows, nil
}

func readDelimited(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("manifest: read %s: %w", path, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// extract finds the key column and collects its values.
func extract(rows [][]string) ([]string, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	col, start := 0, 0
	if idx := keyColumn(rows[0]); idx >= 0 {
		col, start = idx, 1
	}

	seen := make(map[string]bool)
	var keys []string
	for _, row := range rows[start:] {
		if col >= len(row) {
			continue
		}
		key := normalizeKey(row[col])
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, ErrEmpty
	}
	return keys, nil
}

// keyColumn returns the index of the header naming the key column, or -1
// when the first row is data.
func keyColumn(header []string) int {
	for _, want := range keyHeaders {
		for i, h := range header {
			l := strings.ToLower(strings.TrimSpace(h))
			if strings.Contains(l, ".") {
				// Looks like a file name, not a header.
				return -1
			}
			if strings.Contains(l, want) {
				return i
			}
		}
	}
	return -1
}

// normalizeKey trims whitespace and strips an s3://bucket/ prefix.
func normalizeKey(v string) string {
	v = strings.TrimSpace(v)
	if rest, ok := strings.CutPrefix(v, "s3://"); ok {
		if _, key, found := strings.Cut(rest, "/"); found {
			return key
		}
		return ""
	}
	return v
}

// Chunks splits keys into batches of at most size.
func Chunks(keys []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var out [][]string
	for len(keys) > 0 {
		n := min(size, len(keys))
		out = append(out, keys[:n])
		keys = keys[n:]
	}
	return out
}

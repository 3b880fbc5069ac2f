// Package ingest turns uploaded spreadsheets into source lines.
//
// Headers are normalized (trimmed, lowercased, whitespace to underscores)
// and each canonical field accepts several header aliases, so exports from
// different ledgers load without a mapping step.
package ingest

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one data row keyed by normalized header.
type Row map[string]string

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeHeader trims, lowercases and replaces whitespace runs with "_".
func NormalizeHeader(h string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), "_")
}

// ReadSheet reads the named sheet (the first sheet when name is empty).
// The first row is the header. Fully blank rows are skipped.
func ReadSheet(r io.Reader, name string) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %v", ErrMalformed, err)
	}
	defer f.Close()

	if name == "" {
		name = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: sheet %q not found", ErrMalformed, name)
	}

	raw, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	headers := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		headers[i] = NormalizeHeader(h)
	}

	rows := make([]Row, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		row := make(Row, len(headers))
		blank := true
		for i, v := range cells {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			v = strings.TrimSpace(v)
			if v != "" {
				blank = false
			}
			row[headers[i]] = v
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// pick returns the first non-empty value among keys.
func (r Row) pick(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}

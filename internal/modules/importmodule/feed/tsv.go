package feed

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// maxLineSize bounds a single TSV row; principal rows with long character
// lists run well past bufio's 64KB default
const maxLineSize = 1 << 20

// nullValue marks a missing field in the feeds
const nullValue = `\N`

var errNoHeader = errors.New("missing header row")

// table iterates the rows of a TSV stream with a header row. Quotes are
// not special in these feeds, so fields are split on tabs only.
type table struct {
	scanner *bufio.Scanner
	columns map[string]int
	fields  []string
}

func newTable(r io.Reader) (*table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errNoHeader
	}

	header := strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\t")
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	return &table{scanner: scanner, columns: columns}, nil
}

// Next advances to the next non-empty row
func (t *table) Next() bool {
	for t.scanner.Scan() {
		line := strings.TrimRight(t.scanner.Text(), "\r")
		if line == "" {
			continue
		}
		t.fields = strings.Split(line, "\t")
		return true
	}
	return false
}

// Err returns the first read error
func (t *table) Err() error {
	return t.scanner.Err()
}

// Get returns the named column of the current row, or "" when the row is short
func (t *table) Get(column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(t.fields) {
		return ""
	}
	return t.fields[i]
}

// Value is Get with the null marker mapped to ""
func (t *table) Value(column string) string {
	v := t.Get(column)
	if v == nullValue {
		return ""
	}
	return v
}

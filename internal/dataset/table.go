package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a parsed file: ordered column names and typed cells.
// A cell is nil, int64, float64, bool or string.
type Table struct {
	Columns []string
	Types   []string
	Rows    [][]any
}

// ParseError wraps a failure to read an uploaded file's contents.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Read parses data according to the file extension (with leading dot).
func Read(ext string, r io.Reader) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch strings.ToLower(ext) {
	case ".csv":
		t, err = readCSV(r)
	case ".json":
		t, err = readJSON(r)
	case ".xlsx", ".xls":
		t, err = readExcel(r)
	default:
		return nil, fmt.Errorf("%s: %w", ext, ErrUnsupportedType)
	}
	if err != nil {
		return nil, &ParseError{Format: strings.TrimPrefix(ext, "."), Err: err}
	}
	return t, nil
}

func readCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("file is empty")
		}
		return nil, err
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	var raw [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		// Over-long lines are skipped, short ones padded with nulls.
		if len(rec) > len(header) {
			continue
		}
		raw = append(raw, rec)
	}
	return fromStrings(header, raw), nil
}

func readExcel(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("sheet is empty")
	}
	return fromStrings(rows[0], rows[1:]), nil
}

// fromStrings types each column from its text cells: int64 when every
// non-empty value is an integer, float64 for numbers, bool for true/false,
// otherwise object. Integer columns containing nulls become float64.
func fromStrings(header []string, raw [][]string) *Table {
	t := &Table{
		Columns: uniqueNames(header),
		Types:   make([]string, len(header)),
		Rows:    make([][]any, len(raw)),
	}
	for i := range t.Rows {
		t.Rows[i] = make([]any, len(header))
	}

	for c := range header {
		kind := TypeInt
		nulls := 0
		for _, rec := range raw {
			s := cellAt(rec, c)
			if s == "" {
				nulls++
				continue
			}
			kind = widen(kind, s)
		}
		if kind == TypeInt && nulls > 0 {
			kind = TypeFloat
		}
		if nulls == len(raw) {
			kind = TypeFloat
			if len(raw) == 0 {
				kind = TypeObject
			}
		}
		t.Types[c] = kind

		for r, rec := range raw {
			s := cellAt(rec, c)
			if s == "" {
				continue
			}
			t.Rows[r][c] = convert(kind, s)
		}
	}
	return t
}

// naMarkers are the spellings read as missing values rather than text.
var naMarkers = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {}, "-NaN": {}, "-nan": {},
	"1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {}, "NA": {}, "NULL": {}, "NaN": {},
	"None": {}, "n/a": {}, "nan": {}, "null": {},
}

// cellAt returns the trimmed cell, or "" for a missing or NA-marked value.
func cellAt(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	s := strings.TrimSpace(rec[i])
	if _, ok := naMarkers[s]; ok {
		return ""
	}
	return s
}

// parseFinite accepts only finite floats; inf and nan spellings stay text.
func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func widen(kind, s string) string {
	switch kind {
	case TypeInt:
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return TypeInt
		}
		if _, ok := parseFinite(s); ok {
			return TypeFloat
		}
		if isBool(s) {
			return TypeBool
		}
	case TypeFloat:
		if _, ok := parseFinite(s); ok {
			return TypeFloat
		}
	case TypeBool:
		if isBool(s) {
			return TypeBool
		}
	}
	return TypeObject
}

func isBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false":
		return true
	}
	return false
}

func convert(kind, s string) any {
	switch kind {
	case TypeInt:
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	case TypeFloat:
		v, _ := parseFinite(s)
		return v
	case TypeBool:
		return strings.EqualFold(s, "true")
	}
	return s
}

func uniqueNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

// readJSON accepts an array of flat objects. Column order follows first appearance.
func readJSON(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, errors.New("expected an array of records")
	}

	var (
		columns []string
		index   = map[string]int{}
		records []map[string]any
	)
	for dec.More() {
		rec, keys, err := decodeObject(dec)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(columns)
				columns = append(columns, k)
			}
		}
		records = append(records, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	t := &Table{Columns: columns, Types: make([]string, len(columns)), Rows: make([][]any, len(records))}
	for i, rec := range records {
		row := make([]any, len(columns))
		for k, v := range rec {
			row[index[k]] = v
		}
		t.Rows[i] = row
	}
	for c := range columns {
		t.Types[c] = unifyColumn(t.Rows, c)
	}
	return t, nil
}

func decodeObject(dec *json.Decoder) (map[string]any, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("expected an array of records")
	}

	rec := map[string]any{}
	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		rec[key] = scalar(raw)
		keys = append(keys, key)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return rec, keys, nil
}

// scalar turns a raw JSON value into a cell. Nested values are kept as their JSON text.
func scalar(raw json.RawMessage) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if json.Unmarshal(trimmed, &s) == nil {
			return s
		}
	case 't', 'f':
		return trimmed[0] == 't'
	case '{', '[':
		return string(trimmed)
	default:
		if i, err := strconv.ParseInt(string(trimmed), 10, 64); err == nil {
			return i
		}
		if f, ok := parseFinite(string(trimmed)); ok {
			return f
		}
	}
	return string(trimmed)
}

// unifyColumn picks a column type from already-typed JSON cells and coerces cells to it.
func unifyColumn(rows [][]any, c int) string {
	kind := ""
	nulls := 0
	for _, row := range rows {
		var k string
		switch row[c].(type) {
		case nil:
			nulls++
			continue
		case int64:
			k = TypeInt
		case float64:
			k = TypeFloat
		case bool:
			k = TypeBool
		default:
			k = TypeObject
		}
		switch {
		case kind == "":
			kind = k
		case kind == k:
		case (kind == TypeInt && k == TypeFloat) || (kind == TypeFloat && k == TypeInt):
			kind = TypeFloat
		default:
			kind = TypeObject
		}
	}
	if kind == "" {
		return TypeObject
	}
	if kind == TypeInt && nulls > 0 {
		kind = TypeFloat
	}
	for _, row := range rows {
		switch v := row[c].(type) {
		case int64:
			if kind == TypeFloat {
				row[c] = float64(v)
			} else if kind == TypeObject {
				row[c] = strconv.FormatInt(v, 10)
			}
		case float64:
			if kind == TypeObject {
				row[c] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		case bool:
			if kind == TypeObject {
				row[c] = strconv.FormatBool(v)
			}
		}
	}
	return kind
}

package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LoadOptions controls parsing and type inference.
type LoadOptions struct {
	// Delimiter for delimited text. If 0, '\t' for .tsv files and ',' otherwise.
	Delimiter rune
	// DecimalSeparator enables locale numbers such as "1.000,5" when set to ','.
	// If 0, only '.' is accepted as the decimal point.
	DecimalSeparator rune
	// ThousandsSeparator is stripped from numbers when DecimalSeparator is set.
	// Defaults to '.' when DecimalSeparator is ',' and to ',' otherwise.
	ThousandsSeparator rune
	// NullValues are extra literals treated as missing, compared case-insensitively.
	// Empty fields are always missing.
	NullValues []string
	// XLSX sheet selection. SheetIndex is 1-based; the first sheet is used when
	// both are unset.
	SheetName  string
	SheetIndex int
}

// DefaultLoadOptions returns options for plain comma-separated input.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{}
}

// CacheKey is a stable rendering of the options for cache keys.
func (o LoadOptions) CacheKey() string {
	return fmt.Sprintf("d=%q;dec=%q;th=%q;null=%s;sheet=%s#%d",
		o.Delimiter, o.DecimalSeparator, o.ThousandsSeparator,
		strings.Join(o.NullValues, "\x1f"), o.SheetName, o.SheetIndex)
}

// Load reads the file at path into a Dataset named after its base name.
func Load(path string, opt LoadOptions) (*Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, NotFound(err, "file %s", path)
	}
	if info.IsDir() {
		return nil, NotFound(nil, "%s is a directory", path)
	}
	name := filepath.Base(path)
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return loadXLSX(path, name, opt)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, NotFound(err, "open %s", path)
	}
	defer f.Close()
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	return Read(name, f, opt)
}

// Read parses delimited text from r. The first record is the header.
func Read(name string, r io.Reader, opt LoadOptions) (*Dataset, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = ','
	}
	cr := csv.NewReader(bufio.NewReader(r))
	cr.Comma = delim
	cr.TrimLeadingSpace = true
	// Every record must match the header width.
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New(name)
		}
		return nil, csvError(err, "read header")
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, csvError(err, fmt.Sprintf("read row %d", len(rows)+1))
		}
		rows = append(rows, rec)
	}
	return FromRecords(name, header, rows, opt)
}

func csvError(err error, what string) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		if errors.Is(pe.Err, csv.ErrFieldCount) {
			return ParseFailure(pe.Line, nil, "%s: inconsistent column count", what)
		}
		return ParseFailure(pe.Line, pe.Err, "%s", what)
	}
	return ParseFailure(0, err, "%s", what)
}

// FromRecords infers a typed Dataset from a header and raw string rows.
// Each row must have exactly len(header) fields.
func FromRecords(name string, header []string, rows [][]string, opt LoadOptions) (*Dataset, error) {
	names, err := normalizeHeader(header)
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		if len(r) != len(names) {
			return nil, ParseFailure(i+2, nil, "row has %d fields, header has %d", len(r), len(names))
		}
	}
	isNull := nullMatcher(opt.NullValues)
	cols := make([]*Column, len(names))
	cells := make([]string, len(rows))
	for j, colName := range names {
		for i, r := range rows {
			v := strings.TrimSpace(r[j])
			if isNull(v) {
				v = ""
			}
			cells[i] = v
		}
		cols[j] = buildColumn(colName, cells, opt)
	}
	return New(name, cols...)
}

func normalizeHeader(header []string) ([]string, error) {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = "_c" + strconv.Itoa(i)
		}
		if prev, dup := seen[h]; dup {
			return nil, ParseFailure(1, nil, "duplicate column name %q (columns %d and %d)", h, prev+1, i+1)
		}
		seen[h] = i
		names[i] = h
	}
	return names, nil
}

func nullMatcher(extra []string) func(string) bool {
	set := make(map[string]struct{}, len(extra))
	for _, s := range extra {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return func(v string) bool {
		if v == "" {
			return true
		}
		if len(set) == 0 {
			return false
		}
		_, ok := set[strings.ToLower(v)]
		return ok
	}
}

// InferType decides the column type for already-trimmed cells, where the
// empty string is missing. The order is integer, float, boolean,
// timestamp, string; a column without values is string.
func InferType(cells []string, opt LoadOptions) Type {
	canInt, canFloat, canBool, canTime := true, true, true, true
	seen := false
	for _, v := range cells {
		if v == "" {
			continue
		}
		seen = true
		if canInt {
			_, canInt = parseInt(v, opt)
		}
		if canFloat {
			_, canFloat = parseFloat(v, opt)
		}
		if canBool {
			_, canBool = parseBool(v)
		}
		if canTime {
			_, canTime = parseTime(v)
		}
		if !canInt && !canFloat && !canBool && !canTime {
			return String
		}
	}
	switch {
	case !seen:
		return String
	case canInt:
		return Integer
	case canFloat:
		return Float
	case canBool:
		return Boolean
	case canTime:
		return Timestamp
	}
	return String
}

func buildColumn(name string, cells []string, opt LoadOptions) *Column {
	t := InferType(cells, opt)
	b := NewColumnBuilder(name, t)
	for _, v := range cells {
		if v == "" {
			b.AppendNull()
			continue
		}
		switch t {
		case Integer:
			i, _ := parseInt(v, opt)
			b.Append(IntValue(i))
		case Float:
			f, _ := parseFloat(v, opt)
			b.Append(FloatValue(f))
		case Boolean:
			x, _ := parseBool(v)
			b.Append(BoolValue(x))
		case Timestamp:
			ts, _ := parseTime(v)
			b.Append(TimeValue(ts))
		default:
			b.Append(StringValue(v))
		}
	}
	return b.Build()
}

var (
	intPattern   = regexp.MustCompile(`^[+-]?\d+$`)
	floatPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
)

// normalizeNumber rewrites locale-formatted numbers to Go syntax. Without
// an explicit decimal separator the input is returned unchanged.
func normalizeNumber(s string, opt LoadOptions) string {
	dec := opt.DecimalSeparator
	if dec == 0 || dec == '.' {
		if opt.ThousandsSeparator != 0 && opt.ThousandsSeparator != '.' {
			return strings.ReplaceAll(s, string(opt.ThousandsSeparator), "")
		}
		return s
	}
	thou := opt.ThousandsSeparator
	if thou == 0 {
		thou = '.'
	}
	if thou != dec {
		s = strings.ReplaceAll(s, string(thou), "")
	}
	return strings.ReplaceAll(s, string(dec), ".")
}

func parseInt(s string, opt LoadOptions) (int64, bool) {
	raw := normalizeNumber(s, opt)
	if !intPattern.MatchString(raw) {
		return 0, false
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

func parseFloat(s string, opt LoadOptions) (float64, bool) {
	raw := normalizeNumber(s, opt)
	if !floatPattern.MatchString(raw) {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// out of range
		return 0, false
	}
	return f, true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y":
		return true, true
	case "false", "f", "no", "n":
		return false, true
	}
	return false, false
}

var timeLayouts = []string{
	time.RFC3339Nano, "2006-01-02", "2006/01/02", "2006-01-02 15:04", "2006-01-02 15:04:05",
	"2006-01-02T15:04:05", "01/02/2006", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"Jan 2, 2006", "2 Jan 2006",
}

func parseTime(s string) (time.Time, bool) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

// WriteCSV renders d as comma-separated text with a header row.
func WriteCSV(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Schema().Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, d.NumCols())
	for i := 0; i < d.NumRows(); i++ {
		for j, c := range d.Columns() {
			rec[j] = c.Value(i).String()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

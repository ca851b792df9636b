package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

// DefaultTopValues is the number of frequent values kept per text column.
const DefaultTopValues = 5

// ProfileOptions tunes Profile.
type ProfileOptions struct {
	// TopValues bounds the frequent values listed for string and boolean
	// columns; 0 means DefaultTopValues and a negative value disables them.
	TopValues int
}

// NumericStats are the descriptive statistics of a numeric column. Fields
// are null when the column has no values (Std also when it has one). Min,
// Max and Sum carry the column type: int64 for integer columns, float64
// otherwise. Sum is null when it overflows.
type NumericStats struct {
	Min    any      `json:"min"`
	Max    any      `json:"max"`
	Mean   *float64 `json:"mean"`
	Std    *float64 `json:"std"`
	Median *float64 `json:"median"`
	Sum    any      `json:"sum"`
}

// TimeRange bounds a timestamp column.
type TimeRange struct {
	Earliest *string `json:"earliest"`
	Latest   *string `json:"latest"`
}

// ValueCount is one frequent value.
type ValueCount struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

// ColumnStatistic describes one column.
type ColumnStatistic struct {
	Name         string        `json:"name"`
	Type         dataset.Type  `json:"type"`
	NullCount    int           `json:"null_count"`
	NonNullCount int           `json:"non_null_count"`
	UniqueCount  int           `json:"unique_count"`
	NullPct      float64       `json:"null_pct"`
	Numeric      *NumericStats `json:"numeric,omitempty"`
	Time         *TimeRange    `json:"time,omitempty"`
	TopValues    []ValueCount  `json:"top_values,omitempty"`
}

// ProfileReport holds one ColumnStatistic per column, in column order.
type ProfileReport struct {
	Name    string            `json:"name"`
	Rows    int               `json:"rows"`
	Columns []ColumnStatistic `json:"columns"`
}

// Profile computes per-column statistics. It never fails; empty columns
// report zero counts and null statistics.
func Profile(d *dataset.Dataset, opt ProfileOptions) *ProfileReport {
	top := opt.TopValues
	if top == 0 {
		top = DefaultTopValues
	}
	rep := &ProfileReport{Name: d.Name(), Rows: d.NumRows(), Columns: make([]ColumnStatistic, 0, d.NumCols())}
	for _, c := range d.Columns() {
		rep.Columns = append(rep.Columns, profileColumn(c, top))
	}
	return rep
}

func profileColumn(c *dataset.Column, top int) ColumnStatistic {
	st := ColumnStatistic{Name: c.Name(), Type: c.Type(), NullCount: c.NullCount()}
	st.NonNullCount = c.Len() - st.NullCount
	if c.Len() > 0 {
		st.NullPct = float64(st.NullCount) * 100 / float64(c.Len())
	}

	counts := make(map[string]int)
	firstRow := make(map[string]int)
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			continue
		}
		k := c.Value(i).Key()
		if _, ok := counts[k]; !ok {
			firstRow[k] = i
		}
		counts[k]++
	}
	st.UniqueCount = len(counts)

	switch {
	case c.Type().IsNumeric():
		st.Numeric = numericStats(c)
	case c.Type() == dataset.Timestamp:
		st.Time = timeRange(c)
	case top > 0:
		st.TopValues = topValues(c, counts, firstRow, top)
	}
	return st
}

func numericStats(c *dataset.Column) *NumericStats {
	vals, rows := c.Floats()
	ns := &NumericStats{}
	if len(vals) == 0 {
		return ns
	}
	// Bounds and sum keep the column type so int64 stays exact past 2^53.
	lo, _ := extremum(-1)(c, rows)
	hi, _ := extremum(1)(c, rows)
	ns.Min, ns.Max = lo.Interface(), hi.Interface()
	if sum, err := aggSum(c, rows); err == nil {
		ns.Sum = sum.Interface()
	}
	var w welford
	for _, x := range vals {
		w.add(x)
	}
	ns.Mean = finite(w.mean)
	if s, ok := w.std(); ok {
		ns.Std = finite(s)
	}
	ns.Median = finite(quantile(sortedCopy(vals), 0.5))
	return ns
}

func timeRange(c *dataset.Column) *TimeRange {
	tr := &TimeRange{}
	var lo, hi dataset.Value
	found := false
	for i := 0; i < c.Len(); i++ {
		v := c.Value(i)
		if v.Null {
			continue
		}
		if !found {
			lo, hi, found = v, v, true
			continue
		}
		if v.Compare(lo) < 0 {
			lo = v
		}
		if v.Compare(hi) > 0 {
			hi = v
		}
	}
	if found {
		e, l := lo.String(), hi.String()
		tr.Earliest, tr.Latest = &e, &l
	}
	return tr
}

func topValues(c *dataset.Column, counts, firstRow map[string]int, limit int) []ValueCount {
	type entry struct {
		key   string
		count int
		val   dataset.Value
	}
	entries := make([]entry, 0, len(counts))
	for k, n := range counts {
		entries = append(entries, entry{key: k, count: n, val: c.Value(firstRow[k])})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count == entries[j].count {
			return entries[i].val.Compare(entries[j].val) < 0
		}
		return entries[i].count > entries[j].count
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]ValueCount, len(entries))
	for i, e := range entries {
		out[i] = ValueCount{Value: e.val.Interface(), Count: e.count}
	}
	return out
}

// Markdown renders the report in the sectioned text layout used by the CLI.
func (r *ProfileReport) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Columns)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Columns {
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%, unique %d)",
			safeName(c.Name), c.Type, c.NonNullCount, c.NullPct, c.UniqueCount))
		switch {
		case c.Numeric != nil && c.Numeric.Mean != nil:
			n := c.Numeric
			b.WriteString(fmt.Sprintf(" - min %s, max %s, mean %s, median %s, std %s",
				fmtNumber(n.Min), fmtNumber(n.Max), fmtFloat(n.Mean), fmtFloat(n.Median), fmtFloat(n.Std)))
		case c.Time != nil && c.Time.Earliest != nil:
			b.WriteString(fmt.Sprintf(" - from %s to %s", *c.Time.Earliest, *c.Time.Latest))
		case len(c.TopValues) > 0:
			b.WriteString(" - top: ")
			for i, kv := range c.TopValues {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", safeVal(fmt.Sprint(kv.Value)), kv.Count))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", *v)
}

// fmtNumber renders a typed numeric value; integers print in full.
func fmtNumber(v any) string {
	switch x := v.(type) {
	case nil:
		return "n/a"
	case float64:
		return fmt.Sprintf("%.4g", x)
	default:
		return fmt.Sprint(x)
	}
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

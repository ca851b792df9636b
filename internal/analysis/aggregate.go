package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

// Aggregation applies Function to Column within each group.
type Aggregation struct {
	Column   string `json:"column"`
	Function string `json:"function"`
}

// Aggregations accepts either a list of {column, function} objects or a
// {"column": "function"} object, which is applied in column name order.
type Aggregations []Aggregation

func (a *Aggregations) UnmarshalJSON(b []byte) error {
	var list []Aggregation
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&list); err == nil {
		*a = list
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return dataset.Invalid("aggregations must be a list of {column, function} or a {column: function} object")
	}
	cols := make([]string, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	out := make([]Aggregation, len(cols))
	for i, c := range cols {
		out[i] = Aggregation{Column: c, Function: m[c]}
	}
	*a = out
	return nil
}

// aggFunc reduces the non-null values of a column at the given rows.
type aggFunc struct {
	numericOnly bool
	outType     func(in dataset.Type) dataset.Type
	apply       func(c *dataset.Column, rows []int) (dataset.Value, error)
}

var aggFuncs = map[string]aggFunc{
	"sum":   {numericOnly: true, outType: sameType, apply: aggSum},
	"count": {outType: func(dataset.Type) dataset.Type { return dataset.Integer }, apply: aggCount},
	"mean":  {numericOnly: true, outType: floatType, apply: aggMean},
	"min":   {outType: sameType, apply: extremum(-1)},
	"max":   {outType: sameType, apply: extremum(1)},
}

var aggAliases = map[string]string{"avg": "mean", "average": "mean"}

// AggregateFunctions lists the supported function names, aliases excluded.
func AggregateFunctions() []string {
	out := make([]string, 0, len(aggFuncs))
	for name := range aggFuncs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func lookupAggFunc(name string, col *dataset.Column) (string, aggFunc, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aggAliases[key]; ok {
		key = alias
	}
	fn, ok := aggFuncs[key]
	if !ok {
		return "", aggFunc{}, dataset.Invalid("unknown aggregation function %q (supported: %s)",
			name, strings.Join(AggregateFunctions(), ", "))
	}
	if fn.numericOnly && !col.Type().IsNumeric() {
		return "", aggFunc{}, dataset.Invalid("%s needs a numeric column, %q is %s", key, col.Name(), col.Type())
	}
	return key, fn, nil
}

func sameType(t dataset.Type) dataset.Type { return t }
func floatType(dataset.Type) dataset.Type { return dataset.Float }

func aggCount(c *dataset.Column, rows []int) (dataset.Value, error) {
	n := 0
	for _, i := range rows {
		if !c.IsNull(i) {
			n++
		}
	}
	return dataset.IntValue(int64(n)), nil
}

func aggSum(c *dataset.Column, rows []int) (dataset.Value, error) {
	seen := false
	if c.Type() == dataset.Integer {
		var sum int64
		for _, i := range rows {
			v := c.Value(i)
			if v.Null {
				continue
			}
			seen = true
			next := sum + v.Int
			if (v.Int > 0 && next < sum) || (v.Int < 0 && next > sum) {
				return dataset.Value{}, dataset.ComputationFailure("integer sum of %q overflows int64", c.Name())
			}
			sum = next
		}
		if !seen {
			return dataset.NullValue(dataset.Integer), nil
		}
		return dataset.IntValue(sum), nil
	}
	var sum float64
	for _, i := range rows {
		if x, ok := c.Value(i).Float64(); ok {
			seen = true
			sum += x
		}
	}
	if !seen || math.IsInf(sum, 0) || math.IsNaN(sum) {
		return dataset.NullValue(dataset.Float), nil
	}
	return dataset.FloatValue(sum), nil
}

func aggMean(c *dataset.Column, rows []int) (dataset.Value, error) {
	var w welford
	for _, i := range rows {
		if x, ok := c.Value(i).Float64(); ok {
			w.add(x)
		}
	}
	if w.n == 0 || math.IsInf(w.mean, 0) || math.IsNaN(w.mean) {
		return dataset.NullValue(dataset.Float), nil
	}
	return dataset.FloatValue(w.mean), nil
}

// extremum returns min for sign -1 and max for sign 1.
func extremum(sign int) func(c *dataset.Column, rows []int) (dataset.Value, error) {
	return func(c *dataset.Column, rows []int) (dataset.Value, error) {
		best := dataset.NullValue(c.Type())
		for _, i := range rows {
			v := c.Value(i)
			if v.Null {
				continue
			}
			if best.Null || v.Compare(best)*sign > 0 {
				best = v
			}
		}
		return best, nil
	}
}

type group struct {
	key  []dataset.Value
	rows []int
}

// groupRows partitions rows by the values of cols in first-seen order.
// Nulls form their own group.
func groupRows(d *dataset.Dataset, cols []*dataset.Column) []*group {
	if len(cols) == 0 {
		all := make([]int, d.NumRows())
		for i := range all {
			all[i] = i
		}
		return []*group{{rows: all}}
	}
	index := make(map[string]*group)
	var order []*group
	vals := make([]dataset.Value, len(cols))
	for i := 0; i < d.NumRows(); i++ {
		for j, c := range cols {
			vals[j] = c.Value(i)
		}
		k := dataset.RowKey(vals)
		g, ok := index[k]
		if !ok {
			g = &group{key: append([]dataset.Value(nil), vals...)}
			index[k] = g
			order = append(order, g)
		}
		g.rows = append(g.rows, i)
	}
	return order
}

// Aggregate groups d by groupBy and applies each aggregation per group.
// Output columns are the group columns followed by <function>_<column>.
// Groups appear in the order their first row appears; an empty groupBy
// yields a single row over the whole dataset.
func Aggregate(d *dataset.Dataset, groupBy []string, aggs []Aggregation) (*dataset.Dataset, error) {
	if len(aggs) == 0 {
		return nil, dataset.Invalid("aggregate needs at least one aggregation")
	}
	gcols, err := lookupColumns(d, "group", groupBy)
	if err != nil {
		return nil, err
	}
	type plan struct {
		col *dataset.Column
		fn  aggFunc
	}
	plans := make([]plan, len(aggs))
	used := make(map[string]bool)
	var schema dataset.Schema
	for _, c := range gcols {
		used[c.Name()] = true
		schema = append(schema, dataset.Field{Name: c.Name(), Type: c.Type()})
	}
	for i, a := range aggs {
		c, ok := d.Column(a.Column)
		if !ok {
			return nil, dataset.Invalid("aggregation column %q not found in %s (columns: %s)",
				a.Column, d.Name(), strings.Join(d.Schema().Names(), ", "))
		}
		name, fn, err := lookupAggFunc(a.Function, c)
		if err != nil {
			return nil, err
		}
		out := name + "_" + c.Name()
		if used[out] {
			return nil, dataset.Invalid("aggregation output column %q is produced twice", out)
		}
		used[out] = true
		plans[i] = plan{col: c, fn: fn}
		schema = append(schema, dataset.Field{Name: out, Type: fn.outType(c.Type())})
	}

	groups := groupRows(d, gcols)
	rows := make([][]dataset.Value, 0, len(groups))
	for _, g := range groups {
		row := make([]dataset.Value, 0, len(schema))
		row = append(row, g.key...)
		for _, p := range plans {
			v, err := p.fn.apply(p.col, g.rows)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return dataset.FromValues(d.Name()+"_aggregated", schema, rows)
}

package analysis

import (
	"sort"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

// DefaultPivotFunc aggregates cells that share an (index, column) pair.
const DefaultPivotFunc = "sum"

// PivotOptions configures Pivot.
type PivotOptions struct {
	Index   string
	Columns string
	Values  string
	// Func is any aggregation function name; "" means sum.
	Func string
}

// Pivot reshapes d so that every distinct value of opt.Columns becomes an
// output column. Rows are the distinct values of opt.Index in first-seen
// order; pivot columns are sorted by value with null last and named
// "null". Cells aggregate opt.Values with opt.Func; combinations without
// rows are null.
func Pivot(d *dataset.Dataset, opt PivotOptions) (*dataset.Dataset, error) {
	if opt.Index == "" || opt.Columns == "" || opt.Values == "" {
		return nil, dataset.Invalid("pivot needs index, columns and values")
	}
	if opt.Index == opt.Columns {
		return nil, dataset.Invalid("pivot index and columns must differ, both are %q", opt.Index)
	}
	idx, err := lookupColumns(d, "pivot index", []string{opt.Index})
	if err != nil {
		return nil, err
	}
	piv, err := lookupColumns(d, "pivot", []string{opt.Columns})
	if err != nil {
		return nil, err
	}
	val, err := lookupColumns(d, "pivot values", []string{opt.Values})
	if err != nil {
		return nil, err
	}
	fnName := opt.Func
	if fnName == "" {
		fnName = DefaultPivotFunc
	}
	_, fn, err := lookupAggFunc(fnName, val[0])
	if err != nil {
		return nil, err
	}

	pivCol := piv[0]
	pivKeys := make(map[string]int)
	var pivVals []dataset.Value
	for i := 0; i < pivCol.Len(); i++ {
		v := pivCol.Value(i)
		if _, ok := pivKeys[v.Key()]; !ok {
			pivKeys[v.Key()] = len(pivVals)
			pivVals = append(pivVals, v)
		}
	}
	sort.SliceStable(pivVals, func(i, j int) bool { return pivVals[i].Compare(pivVals[j]) < 0 })
	for i, v := range pivVals {
		pivKeys[v.Key()] = i
	}

	used := map[string]bool{opt.Index: true}
	schema := dataset.Schema{{Name: opt.Index, Type: idx[0].Type()}}
	outType := fn.outType(val[0].Type())
	for _, v := range pivVals {
		name := v.String()
		if v.Null {
			name = "null"
		}
		schema = append(schema, dataset.Field{Name: uniqueName(name, used), Type: outType})
	}

	groups := groupRows(d, idx)
	rows := make([][]dataset.Value, 0, len(groups))
	cells := make([][]int, len(pivVals))
	for _, g := range groups {
		for j := range cells {
			cells[j] = cells[j][:0]
		}
		for _, r := range g.rows {
			j := pivKeys[pivCol.Value(r).Key()]
			cells[j] = append(cells[j], r)
		}
		row := make([]dataset.Value, 0, len(schema))
		row = append(row, g.key[0])
		for _, rs := range cells {
			if len(rs) == 0 {
				row = append(row, dataset.NullValue(outType))
				continue
			}
			v, err := fn.apply(val[0], rs)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return dataset.FromValues(d.Name()+"_pivot", schema, rows)
}

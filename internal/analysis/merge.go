package analysis

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

// JoinType selects relational join semantics.
type JoinType string

const (
	InnerJoin JoinType = "inner"
	LeftJoin  JoinType = "left"
	RightJoin JoinType = "right"
	OuterJoin JoinType = "outer"
)

// DefaultSuffix is appended to right-side columns whose names collide.
const DefaultSuffix = "_right"

// ParseJoinType accepts inner, left, right, outer and the aliases full
// and full_outer. The empty string means inner.
func ParseJoinType(s string) (JoinType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inner":
		return InnerJoin, nil
	case "left", "left_outer":
		return LeftJoin, nil
	case "right", "right_outer":
		return RightJoin, nil
	case "outer", "full", "full_outer":
		return OuterJoin, nil
	}
	return "", dataset.Invalid("unknown join type %q (want inner, left, right or outer)", s)
}

// MergeOptions configures Merge.
type MergeOptions struct {
	On     []string
	How    JoinType
	Suffix string
}

type joinKey struct {
	name        string
	typ         dataset.Type
	left, right *dataset.Column
}

// Merge joins a and b on the key columns. The output holds the keys first,
// then a's remaining columns, then b's, with colliding names from b
// suffixed. Rows sharing a key fan out to every match; null keys never
// match. Row order follows a for inner and left joins and b for right
// joins; outer joins append unmatched b rows after a's rows.
func Merge(a, b *dataset.Dataset, opt MergeOptions) (*dataset.Dataset, error) {
	how, err := ParseJoinType(string(opt.How))
	if err != nil {
		return nil, err
	}
	suffix := opt.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}
	keys, err := resolveJoinKeys(a, b, opt.On)
	if err != nil {
		return nil, err
	}

	isKey := make(map[string]bool, len(keys))
	used := make(map[string]bool)
	var schema dataset.Schema
	for _, k := range keys {
		isKey[k.name] = true
		used[k.name] = true
		schema = append(schema, dataset.Field{Name: k.name, Type: k.typ})
	}
	var leftCols, rightCols []*dataset.Column
	for _, c := range a.Columns() {
		if isKey[c.Name()] {
			continue
		}
		used[c.Name()] = true
		leftCols = append(leftCols, c)
		schema = append(schema, dataset.Field{Name: c.Name(), Type: c.Type()})
	}
	for _, c := range b.Columns() {
		if isKey[c.Name()] {
			continue
		}
		name := c.Name()
		if used[name] {
			name = uniqueName(name+suffix, used)
		} else {
			used[name] = true
		}
		rightCols = append(rightCols, c)
		schema = append(schema, dataset.Field{Name: name, Type: c.Type()})
	}

	builders := make([]*dataset.ColumnBuilder, len(schema))
	for j, f := range schema {
		builders[j] = dataset.NewColumnBuilder(f.Name, f.Type)
	}
	emit := func(ai, bi int) {
		j := 0
		for _, k := range keys {
			if ai >= 0 {
				builders[j].Append(k.left.Value(ai))
			} else {
				builders[j].Append(k.right.Value(bi))
			}
			j++
		}
		for _, c := range leftCols {
			if ai >= 0 {
				builders[j].Append(c.Value(ai))
			} else {
				builders[j].AppendNull()
			}
			j++
		}
		for _, c := range rightCols {
			if bi >= 0 {
				builders[j].Append(c.Value(bi))
			} else {
				builders[j].AppendNull()
			}
			j++
		}
	}

	if how == RightJoin {
		index := indexRows(a, keys, true)
		for bi := 0; bi < b.NumRows(); bi++ {
			k, ok := rowJoinKey(keys, bi, false)
			matches := index[k]
			if !ok || len(matches) == 0 {
				emit(-1, bi)
				continue
			}
			for _, ai := range matches {
				emit(ai, bi)
			}
		}
	} else {
		index := indexRows(b, keys, false)
		matchedB := make([]bool, b.NumRows())
		for ai := 0; ai < a.NumRows(); ai++ {
			k, ok := rowJoinKey(keys, ai, true)
			matches := index[k]
			if !ok || len(matches) == 0 {
				if how == LeftJoin || how == OuterJoin {
					emit(ai, -1)
				}
				continue
			}
			for _, bi := range matches {
				matchedB[bi] = true
				emit(ai, bi)
			}
		}
		if how == OuterJoin {
			for bi, m := range matchedB {
				if !m {
					emit(-1, bi)
				}
			}
		}
	}

	cols := make([]*dataset.Column, len(builders))
	for j, bld := range builders {
		cols[j] = bld.Build()
	}
	return dataset.New(fmt.Sprintf("%s_%s_%s", a.Name(), how, b.Name()), cols...)
}

func resolveJoinKeys(a, b *dataset.Dataset, on []string) ([]joinKey, error) {
	if len(on) == 0 {
		return nil, dataset.Invalid("merge needs at least one key column")
	}
	lcols, err := lookupColumns(a, "join key", on)
	if err != nil {
		return nil, err
	}
	rcols, err := lookupColumns(b, "join key", on)
	if err != nil {
		return nil, err
	}
	keys := make([]joinKey, len(on))
	for i, name := range on {
		lt, rt := lcols[i].Type(), rcols[i].Type()
		typ := lt
		if lt != rt {
			if !lt.IsNumeric() || !rt.IsNumeric() {
				return nil, dataset.Invalid("join key %q has incompatible types %s and %s", name, lt, rt)
			}
			typ = dataset.Float
		}
		keys[i] = joinKey{name: name, typ: typ, left: lcols[i], right: rcols[i]}
	}
	return keys, nil
}

// rowJoinKey encodes the key of row i on one side. ok is false when any
// key value is null.
func rowJoinKey(keys []joinKey, i int, left bool) (string, bool) {
	vals := make([]dataset.Value, len(keys))
	for j, k := range keys {
		c := k.right
		if left {
			c = k.left
		}
		v := c.Value(i)
		if v.Null {
			return "", false
		}
		if k.typ == dataset.Float && v.Type == dataset.Integer {
			v = dataset.FloatValue(float64(v.Int))
		}
		vals[j] = v
	}
	return dataset.RowKey(vals), true
}

func indexRows(d *dataset.Dataset, keys []joinKey, left bool) map[string][]int {
	index := make(map[string][]int, d.NumRows())
	for i := 0; i < d.NumRows(); i++ {
		k, ok := rowJoinKey(keys, i, left)
		if !ok {
			continue
		}
		index[k] = append(index[k], i)
	}
	return index
}

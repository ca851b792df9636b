package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

func TestMergeExample(t *testing.T) {
	a := csvData(t, "a.csv", "id,v", "1,10", "2,20")
	b := csvData(t, "b.csv", "id,w", "1,x")

	inner, err := Merge(a, b, MergeOptions{On: []string{"id"}, How: InnerJoin})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "v", "w"}, inner.Schema().Names())
	require.Equal(t, 1, inner.NumRows())
	assert.Equal(t, []any{int64(1), int64(10), "x"}, inner.Table().Rows[0])

	left, err := Merge(a, b, MergeOptions{On: []string{"id"}, How: LeftJoin})
	require.NoError(t, err)
	require.Equal(t, 2, left.NumRows())
	assert.Equal(t, []any{int64(2), int64(20), nil}, left.Table().Rows[1])
}

func TestMergeCardinality(t *testing.T) {
	a := csvData(t, "a.csv", "k,v", "1,a", "2,b", "3,c", "4,d")
	b := csvData(t, "b.csv", "k,w", "2,x", "4,y", "5,z")

	inner, err := Merge(a, b, MergeOptions{On: []string{"k"}})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.NumRows(), "one row per matching unique key")

	left, err := Merge(a, b, MergeOptions{On: []string{"k"}, How: LeftJoin})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, left.NumRows(), a.NumRows())

	right, err := Merge(a, b, MergeOptions{On: []string{"k"}, How: RightJoin})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), int64(4), int64(5)}, column(t, right, "k"))
	assert.Equal(t, []any{"b", "d", nil}, column(t, right, "v"))

	outer, err := Merge(a, b, MergeOptions{On: []string{"k"}, How: OuterJoin})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4), int64(5)}, column(t, outer, "k"))
	assert.Equal(t, []any{nil, "x", nil, "y", "z"}, column(t, outer, "w"))
}

func TestMergeFanOut(t *testing.T) {
	a := csvData(t, "a.csv", "k,v", "1,a", "1,b", "2,c")
	b := csvData(t, "b.csv", "k,w", "1,x", "1,y")
	out, err := Merge(a, b, MergeOptions{On: []string{"k"}})
	require.NoError(t, err)
	assert.Equal(t, 4, out.NumRows())
	assert.Equal(t, []any{"a", "a", "b", "b"}, column(t, out, "v"))
	assert.Equal(t, []any{"x", "y", "x", "y"}, column(t, out, "w"))
}

func TestMergeNullKeysNeverMatch(t *testing.T) {
	a := csvData(t, "a.csv", "k,v", ",a", "1,b")
	b := csvData(t, "b.csv", "k,w", ",x", "1,y")
	inner, err := Merge(a, b, MergeOptions{On: []string{"k"}})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.NumRows())

	outer, err := Merge(a, b, MergeOptions{On: []string{"k"}, How: "full"})
	require.NoError(t, err)
	assert.Equal(t, 3, outer.NumRows())
}

func TestMergeColumnCollisions(t *testing.T) {
	a := csvData(t, "a.csv", "id,name,name_right", "1,a,b")
	b := csvData(t, "b.csv", "id,name", "1,c")
	out, err := Merge(a, b, MergeOptions{On: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "name_right", "name_right_2"}, out.Schema().Names())

	out, err = Merge(a, b, MergeOptions{On: []string{"id"}, Suffix: "_b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "name_right", "name_b"}, out.Schema().Names())
}

func TestMergeMultipleKeysAndNumericWidening(t *testing.T) {
	a := csvData(t, "a.csv", "x,y,v", "1,p,10", "2,q,20")
	b := csvData(t, "b.csv", "x,y,w", "1.0,p,a", "2.5,q,b")
	out, err := Merge(a, b, MergeOptions{On: []string{"x", "y"}})
	require.NoError(t, err)
	col, _ := out.Column("x")
	assert.Equal(t, dataset.Float, col.Type())
	assert.Equal(t, 1, out.NumRows())
	assert.Equal(t, []any{1.0, "p", int64(10), "a"}, out.Table().Rows[0])
}

func TestMergeValidation(t *testing.T) {
	a := csvData(t, "a.csv", "id,v", "1,10")
	b := csvData(t, "b.csv", "id,w", "x,1")
	c := csvData(t, "c.csv", "key,w", "1,1")

	cases := map[string]MergeOptions{
		"no keys":          {},
		"missing key":      {On: []string{"nope"}},
		"incompatible":     {On: []string{"id"}},
		"bad join type":    {On: []string{"id"}, How: "cross"},
		"duplicate key":    {On: []string{"id", "id"}},
		"missing on right": {On: []string{"v"}},
	}
	for name, opt := range cases {
		t.Run(name, func(t *testing.T) {
			right := b
			if name == "missing on right" {
				right = c
			}
			_, err := Merge(a, right, opt)
			require.Error(t, err)
			assert.Equal(t, dataset.KindValidation, dataset.KindOf(err))
		})
	}
}

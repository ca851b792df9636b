package dataset

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueKeyDistinguishesTypes(t *testing.T) {
	keys := map[string]Value{}
	for _, v := range []Value{
		IntValue(1), FloatValue(1.5), StringValue("1"), BoolValue(true),
		NullValue(Integer), NullValue(String), StringValue(""),
		TimeValue(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	} {
		k := v.Key()
		prev, dup := keys[k]
		require.False(t, dup, "key %q shared by %#v and %#v", k, prev, v)
		keys[k] = v
	}
	assert.Equal(t, FloatValue(0).Key(), FloatValue(math.Copysign(0, -1)).Key())
}

func TestRowKeyIsInjective(t *testing.T) {
	a := RowKey([]Value{StringValue("a:b"), StringValue("c")})
	b := RowKey([]Value{StringValue("a"), StringValue("b:c")})
	assert.NotEqual(t, a, b)
}

func TestValueCompare(t *testing.T) {
	assert.Equal(t, -1, IntValue(1).Compare(FloatValue(1.5)))
	assert.Equal(t, 0, IntValue(2).Compare(FloatValue(2)))
	assert.Equal(t, 1, NullValue(Integer).Compare(IntValue(-100)))
	assert.Equal(t, -1, StringValue("a").Compare(StringValue("b")))
	assert.Equal(t, -1, BoolValue(false).Compare(BoolValue(true)))
}

func TestNewRejectsBadColumns(t *testing.T) {
	a := NewColumnBuilder("a", Integer)
	a.Append(IntValue(1))
	b := NewColumnBuilder("b", Integer)
	_, err := New("x", a.Build(), b.Build())
	assert.Equal(t, KindValidation, KindOf(err))

	c1 := NewColumnBuilder("a", String).Build()
	c2 := NewColumnBuilder("a", String).Build()
	_, err = New("x", c1, c2)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestColumnBuilderWidensIntegers(t *testing.T) {
	b := NewColumnBuilder("f", Float)
	b.Append(IntValue(2))
	b.AppendNull()
	c := b.Build()
	assert.Equal(t, FloatValue(2), c.Value(0))
	assert.True(t, c.IsNull(1))
	vals, rows := c.Floats()
	assert.Equal(t, []float64{2}, vals)
	assert.Equal(t, []int{0}, rows)

	assert.Panics(t, func() { NewColumnBuilder("s", String).Append(IntValue(1)) })
}

func TestTableJSON(t *testing.T) {
	schema := Schema{{Name: "id", Type: Integer}, {Name: "w", Type: String}}
	d, err := FromValues("t", schema, [][]Value{
		{IntValue(1), StringValue("x")},
		{IntValue(2), NullValue(String)},
	})
	require.NoError(t, err)
	b, err := json.Marshal(d.Table())
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"t","columns":[{"name":"id","type":"integer"},{"name":"w","type":"string"}],"rows":[[1,"x"],[2,null]]}`, string(b))

	var back Table
	require.NoError(t, json.Unmarshal(b, &back))
	if diff := cmp.Diff(schema, back.Columns); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestSchemaHelpers(t *testing.T) {
	s := Schema{{Name: "a", Type: Integer}, {Name: "b", Type: Float}}
	assert.Equal(t, 1, s.Index("b"))
	assert.Equal(t, -1, s.Index("z"))
	assert.Equal(t, "(a:integer, b:float)", s.String())
	assert.False(t, s.Equal(Schema{{Name: "a", Type: Float}, {Name: "b", Type: Float}}))
}

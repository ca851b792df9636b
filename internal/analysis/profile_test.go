package analysis

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

func TestProfileCountsAddUp(t *testing.T) {
	d := csvData(t, "p.csv",
		"id,score,name,flag,when",
		"1,2.5,a,yes,2024-01-01",
		"2,,b,no,",
		"3,4.5,a,,2024-03-01",
		",6.5,,yes,2024-02-01",
	)
	rep := Profile(d, ProfileOptions{})
	require.Len(t, rep.Columns, d.NumCols())
	for _, c := range rep.Columns {
		assert.Equal(t, d.NumRows(), c.NullCount+c.NonNullCount, c.Name)
	}

	score := rep.Columns[1]
	require.NotNil(t, score.Numeric)
	assert.Equal(t, 2.5, score.Numeric.Min)
	assert.Equal(t, 6.5, score.Numeric.Max)
	assert.InDelta(t, 4.5, *score.Numeric.Mean, 1e-12)
	assert.InDelta(t, 2.0, *score.Numeric.Std, 1e-12)
	assert.InDelta(t, 4.5, *score.Numeric.Median, 1e-12)
	assert.Equal(t, 3, score.UniqueCount)

	name := rep.Columns[2]
	assert.Equal(t, 2, name.UniqueCount)
	assert.Equal(t, []ValueCount{{Value: "a", Count: 2}, {Value: "b", Count: 1}}, name.TopValues)

	when := rep.Columns[4]
	require.NotNil(t, when.Time)
	assert.True(t, strings.HasPrefix(*when.Time.Earliest, "2024-01-01"))
	assert.True(t, strings.HasPrefix(*when.Time.Latest, "2024-03-01"))
}

func TestProfileStdUndefinedForSingleValue(t *testing.T) {
	d := csvData(t, "one.csv", "x", "5")
	rep := Profile(d, ProfileOptions{})
	n := rep.Columns[0].Numeric
	assert.Equal(t, ptr(5), n.Mean)
	assert.Nil(t, n.Std)
}

func TestProfileEmptyDataset(t *testing.T) {
	d := csvData(t, "empty.csv", "a,b")
	rep := Profile(d, ProfileOptions{})
	assert.Equal(t, 0, rep.Rows)
	require.Len(t, rep.Columns, 2)
	for _, c := range rep.Columns {
		assert.Zero(t, c.NullCount)
		assert.Zero(t, c.NonNullCount)
		assert.Zero(t, c.UniqueCount)
		assert.Zero(t, c.NullPct)
	}

	b := dataset.NewColumnBuilder("n", dataset.Float)
	d, err := dataset.New("nums.csv", b.Build())
	require.NoError(t, err)
	rep = Profile(d, ProfileOptions{})
	n := rep.Columns[0].Numeric
	require.NotNil(t, n)
	assert.Nil(t, n.Mean)
	assert.Nil(t, n.Std)
	assert.Nil(t, n.Min)

	raw, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"mean":null`)
	assert.NotContains(t, rep.Markdown(), "NaN")
}

func TestProfileIntegerStatsStayExact(t *testing.T) {
	d := csvData(t, "big.csv", "v", "9007199254740993", "1", "1", "1", "1")
	n := Profile(d, ProfileOptions{}).Columns[0].Numeric
	assert.Equal(t, int64(1), n.Min)
	assert.Equal(t, int64(9007199254740993), n.Max)
	assert.Equal(t, int64(9007199254740997), n.Sum)

	raw, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"max":9007199254740993`)

	d = csvData(t, "big.csv", "v", "9223372036854775807", "1")
	assert.Nil(t, Profile(d, ProfileOptions{}).Columns[0].Numeric.Sum, "overflowing integer sum is null")
}

func TestProfileLargeValuesStayFinite(t *testing.T) {
	d := csvData(t, "big.csv", "x", "1e308", "1e308")
	n := Profile(d, ProfileOptions{}).Columns[0].Numeric
	assert.Nil(t, n.Sum, "overflowing sum is reported as null")
	require.NotNil(t, n.Mean)
	assert.False(t, math.IsInf(*n.Mean, 0))
}

func TestProfileTopValuesLimit(t *testing.T) {
	d := csvData(t, "t.csv", "c", "a", "b", "b", "c", "c", "c")
	rep := Profile(d, ProfileOptions{TopValues: 2})
	assert.Equal(t, []ValueCount{{Value: "c", Count: 3}, {Value: "b", Count: 2}}, rep.Columns[0].TopValues)

	rep = Profile(d, ProfileOptions{TopValues: -1})
	assert.Empty(t, rep.Columns[0].TopValues)
}

func TestProfileMarkdown(t *testing.T) {
	d := csvData(t, "m.csv", "g,v", "a,1", "b,3")
	md := Profile(d, ProfileOptions{}).Markdown()
	for _, want := range []string{"[DATASET SUMMARY]", "File: m.csv", "Rows: 2", "[SCHEMA]", "- v: integer", "mean 2"} {
		assert.Contains(t, md, want)
	}
}

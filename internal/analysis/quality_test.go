package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataQualityDuplicates(t *testing.T) {
	d := csvData(t, "q.csv", "id,v",
		"1,a", "2,b", "3,c", "4,d", "5,e",
		"6,f", "7,g", "8,h", "9,i", "9,i",
	)
	rep, err := DataQuality(d)
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Rows)
	assert.Equal(t, 1, rep.DuplicateRows)
	assert.Equal(t, 20, rep.TotalCells)
	assert.Zero(t, rep.NullCells)
	assert.Equal(t, ptr(1), rep.Completeness)
	assert.Equal(t, ptr(100), rep.Score)
	assert.Equal(t, []string{"Remove 1 duplicate rows"}, rep.Recommendations)
	assert.Equal(t, "q.csv: 100.0% quality (Issues: 1 duplicate rows)", rep.Summary())
}

func TestDataQualityNullsAndRecommendations(t *testing.T) {
	d := csvData(t, "q.csv", "id,empty,sparse,const,x",
		"1,,a,k,1",
		"2,,,k,2",
		"3,,,k,2",
		"4,,,k,3",
		"5,,,k,2",
		"6,,,k,100",
	)
	rep, err := DataQuality(d)
	require.NoError(t, err)
	assert.Equal(t, 11, rep.NullCells)
	assert.InDelta(t, 1-11.0/30, *rep.Completeness, 1e-12)
	assert.InDelta(t, 100*(1-11.0/30), *rep.Score, 1e-9)
	assert.Equal(t, 1, rep.OutlierCount)
	assert.Equal(t, 1, rep.ColumnQuality[4].Outliers)
	assert.True(t, rep.ColumnQuality[0].TypeConsistent)

	assert.Equal(t, []string{
		"Handle missing values: 11 null cells across 2 columns",
		`Drop or backfill column "empty": every value is missing`,
		`Review column "sparse": 83.3% of values are missing`,
		`Column "const" holds a single constant value`,
		"Review 1 outliers flagged by IQR fencing",
	}, rep.Recommendations)
	assert.Contains(t, rep.Summary(), "null values in 2 columns; 1 outliers")
	assert.Contains(t, rep.Markdown(), "[RECOMMENDATIONS]")
}

func TestDataQualityEmptyDataset(t *testing.T) {
	d := csvData(t, "empty.csv", "a,b")
	rep, err := DataQuality(d)
	require.NoError(t, err)
	assert.Zero(t, rep.TotalCells)
	assert.Nil(t, rep.Completeness)
	assert.Nil(t, rep.Score)
	assert.Zero(t, rep.DuplicateRows)
	assert.Empty(t, rep.Recommendations)
	assert.Equal(t, "empty.csv: n/a quality (no issues found)", rep.Summary())
}

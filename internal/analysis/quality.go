package analysis

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

// highNullPct is the missing share above which a column is called out.
const highNullPct = 50.0

// ColumnQuality is the per-column part of a QualityReport.
type ColumnQuality struct {
	Name           string       `json:"name"`
	Type           dataset.Type `json:"type"`
	NullCount      int          `json:"null_count"`
	NullPct        float64      `json:"null_pct"`
	UniqueCount    int          `json:"unique_count"`
	TypeConsistent bool         `json:"type_consistent"`
	Outliers       int          `json:"outliers"`
}

// QualityReport combines completeness, duplicates, per-column type
// consistency and IQR outlier counts. Completeness and Score are null for
// a dataset without cells.
type QualityReport struct {
	Name            string          `json:"name"`
	Rows            int             `json:"rows"`
	Columns         int             `json:"columns"`
	TotalCells      int             `json:"total_cells"`
	NullCells       int             `json:"null_cells"`
	Completeness    *float64        `json:"completeness"`
	Score           *float64        `json:"score"`
	DuplicateRows   int             `json:"duplicate_rows"`
	OutlierCount    int             `json:"outlier_count"`
	ColumnQuality   []ColumnQuality `json:"column_quality"`
	Recommendations []string        `json:"recommendations"`
}

// DataQuality scores d. Duplicate rows are rows beyond the first
// occurrence of each distinct full row.
func DataQuality(d *dataset.Dataset) (*QualityReport, error) {
	rep := &QualityReport{
		Name:          d.Name(),
		Rows:          d.NumRows(),
		Columns:       d.NumCols(),
		TotalCells:    d.NumRows() * d.NumCols(),
		ColumnQuality: make([]ColumnQuality, 0, d.NumCols()),
	}
	anomalies, err := DetectAnomalies(d, AnomalyOptions{})
	if err != nil {
		return nil, err
	}
	outliers := make(map[string]int, len(anomalies.Columns))
	for _, c := range anomalies.Columns {
		outliers[c.Column] = c.Count
	}
	rep.OutlierCount = anomalies.Total

	for _, c := range d.Columns() {
		nulls := c.NullCount()
		rep.NullCells += nulls
		distinct := make(map[string]struct{})
		for i := 0; i < c.Len(); i++ {
			if !c.IsNull(i) {
				distinct[c.Value(i).Key()] = struct{}{}
			}
		}
		// Every value was coerced to the inferred type at load time.
		cq := ColumnQuality{
			Name:           c.Name(),
			Type:           c.Type(),
			NullCount:      nulls,
			UniqueCount:    len(distinct),
			TypeConsistent: true,
			Outliers:       outliers[c.Name()],
		}
		if c.Len() > 0 {
			cq.NullPct = float64(nulls) * 100 / float64(c.Len())
		}
		rep.ColumnQuality = append(rep.ColumnQuality, cq)
	}

	if rep.TotalCells > 0 {
		completeness := 1 - float64(rep.NullCells)/float64(rep.TotalCells)
		score := completeness * 100
		rep.Completeness, rep.Score = &completeness, &score
	}

	seen := make(map[string]struct{}, d.NumRows())
	for i := 0; i < d.NumRows(); i++ {
		seen[d.RowKey(i)] = struct{}{}
	}
	rep.DuplicateRows = d.NumRows() - len(seen)

	rep.Recommendations = recommend(rep)
	return rep, nil
}

func recommend(r *QualityReport) []string {
	out := []string{}
	if r.NullCells > 0 {
		n := 0
		for _, c := range r.ColumnQuality {
			if c.NullCount > 0 {
				n++
			}
		}
		out = append(out, fmt.Sprintf("Handle missing values: %d null cells across %d columns", r.NullCells, n))
	}
	for _, c := range r.ColumnQuality {
		switch {
		case r.Rows > 0 && c.NullCount == r.Rows:
			out = append(out, fmt.Sprintf("Drop or backfill column %q: every value is missing", c.Name))
		case c.NullPct > highNullPct:
			out = append(out, fmt.Sprintf("Review column %q: %.1f%% of values are missing", c.Name, c.NullPct))
		case r.Rows > 1 && c.UniqueCount == 1 && c.NullCount == 0:
			out = append(out, fmt.Sprintf("Column %q holds a single constant value", c.Name))
		}
	}
	if r.DuplicateRows > 0 {
		out = append(out, fmt.Sprintf("Remove %d duplicate rows", r.DuplicateRows))
	}
	if r.OutlierCount > 0 {
		out = append(out, fmt.Sprintf("Review %d outliers flagged by IQR fencing", r.OutlierCount))
	}
	return out
}

// Summary renders a one-line verdict such as "data.csv: 95.0% quality (Issues: 2 duplicate rows)".
func (r *QualityReport) Summary() string {
	var issues []string
	nullCols := 0
	for _, c := range r.ColumnQuality {
		if c.NullCount > 0 {
			nullCols++
		}
	}
	if nullCols > 0 {
		issues = append(issues, fmt.Sprintf("null values in %d columns", nullCols))
	}
	if r.DuplicateRows > 0 {
		issues = append(issues, fmt.Sprintf("%d duplicate rows", r.DuplicateRows))
	}
	if r.OutlierCount > 0 {
		issues = append(issues, fmt.Sprintf("%d outliers", r.OutlierCount))
	}
	score := "n/a"
	if r.Score != nil {
		score = fmt.Sprintf("%.1f%%", *r.Score)
	}
	s := fmt.Sprintf("%s: %s quality", r.Name, score)
	if len(issues) == 0 {
		return s + " (no issues found)"
	}
	return s + " (Issues: " + strings.Join(issues, "; ") + ")"
}

func (r *QualityReport) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATA QUALITY]\n")
	b.WriteString(r.Summary() + "\n")
	b.WriteString(fmt.Sprintf("Rows: %d, Columns: %d, Null cells: %d/%d, Duplicate rows: %d\n\n",
		r.Rows, r.Columns, r.NullCells, r.TotalCells, r.DuplicateRows))
	b.WriteString("[COLUMNS]\n")
	for _, c := range r.ColumnQuality {
		b.WriteString(fmt.Sprintf("- %s: %s (missing %.1f%%, unique %d, outliers %d)\n",
			safeName(c.Name), c.Type, c.NullPct, c.UniqueCount, c.Outliers))
	}
	if len(r.Recommendations) > 0 {
		b.WriteString("\n[RECOMMENDATIONS]\n")
		for _, rec := range r.Recommendations {
			b.WriteString("- " + rec + "\n")
		}
	}
	return b.String()
}

package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

// AnomalyMethod selects the outlier rule.
type AnomalyMethod string

const (
	// MethodIQR flags values outside [Q1 - k*IQR, Q3 + k*IQR].
	MethodIQR AnomalyMethod = "iqr"
	// MethodZScore flags values more than Threshold sample standard
	// deviations from the mean.
	MethodZScore AnomalyMethod = "zscore"
	// MethodMAD flags values whose robust z-score 0.6745*(x-median)/MAD
	// exceeds Threshold in absolute value.
	MethodMAD AnomalyMethod = "mad"
)

const (
	DefaultIQRMultiplier  = 1.5
	DefaultZScoreCutoff   = 2.0
	DefaultMADCutoff      = 3.5
	MinAnomalyObservation = 4
)

// ParseAnomalyMethod maps a name to a method; "" means iqr.
func ParseAnomalyMethod(s string) (AnomalyMethod, error) {
	switch m := AnomalyMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MethodIQR, nil
	case MethodIQR, MethodZScore, MethodMAD:
		return m, nil
	}
	return "", dataset.Invalid("unknown anomaly method %q (want iqr, zscore or mad)", s)
}

// AnomalyOptions configures DetectAnomalies. Zero values select defaults.
type AnomalyOptions struct {
	Columns []string
	Method  AnomalyMethod
	// Multiplier scales the IQR fences.
	Multiplier float64
	// Threshold is the cutoff for zscore and mad.
	Threshold float64
}

// Anomaly is one flagged value, typed as its column: int64 or float64.
type Anomaly struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  any    `json:"value"`
}

// ColumnAnomalies is the outcome for one column. Skipped columns carry a
// Reason and no bounds.
type ColumnAnomalies struct {
	Column    string    `json:"column"`
	NonNull   int       `json:"non_null"`
	Skipped   bool      `json:"skipped"`
	Reason    string    `json:"reason,omitempty"`
	Q1        *float64  `json:"q1,omitempty"`
	Q3        *float64  `json:"q3,omitempty"`
	IQR       *float64  `json:"iqr,omitempty"`
	Center    *float64  `json:"center,omitempty"`
	Spread    *float64  `json:"spread,omitempty"`
	Lower     *float64  `json:"lower_bound,omitempty"`
	Upper     *float64  `json:"upper_bound,omitempty"`
	Count     int       `json:"count"`
	Anomalies []Anomaly `json:"anomalies"`
}

// AnomalyReport lists flagged values per column.
type AnomalyReport struct {
	Name      string            `json:"name"`
	Rows      int               `json:"rows"`
	Method    AnomalyMethod     `json:"method"`
	Cutoff    float64           `json:"cutoff"`
	Columns   []ColumnAnomalies `json:"columns"`
	Total     int               `json:"total"`
	Anomalous int               `json:"anomalous_rows"`
}

// DetectAnomalies flags outliers in the given numeric columns, or in all
// numeric columns when none are named. Columns with fewer than
// MinAnomalyObservation values are skipped and reported as such.
func DetectAnomalies(d *dataset.Dataset, opt AnomalyOptions) (*AnomalyReport, error) {
	method, err := ParseAnomalyMethod(string(opt.Method))
	if err != nil {
		return nil, err
	}
	cols, err := numericColumns(d, "anomaly", opt.Columns)
	if err != nil {
		return nil, err
	}
	cutoff := opt.Threshold
	switch method {
	case MethodIQR:
		cutoff = opt.Multiplier
		if cutoff <= 0 {
			cutoff = DefaultIQRMultiplier
		}
	case MethodZScore:
		if cutoff <= 0 {
			cutoff = DefaultZScoreCutoff
		}
	case MethodMAD:
		if cutoff <= 0 {
			cutoff = DefaultMADCutoff
		}
	}
	rep := &AnomalyReport{Name: d.Name(), Rows: d.NumRows(), Method: method, Cutoff: cutoff, Columns: make([]ColumnAnomalies, 0, len(cols))}
	flaggedRows := make(map[int]bool)
	for _, c := range cols {
		ca := detectColumn(c, method, cutoff)
		rep.Total += ca.Count
		for _, a := range ca.Anomalies {
			flaggedRows[a.Row] = true
		}
		rep.Columns = append(rep.Columns, ca)
	}
	rep.Anomalous = len(flaggedRows)
	return rep, nil
}

func detectColumn(c *dataset.Column, method AnomalyMethod, cutoff float64) ColumnAnomalies {
	vals, rows := c.Floats()
	ca := ColumnAnomalies{Column: c.Name(), NonNull: len(vals), Anomalies: []Anomaly{}}
	if len(vals) < MinAnomalyObservation {
		ca.Skipped = true
		ca.Reason = fmt.Sprintf("insufficient data: %d non-null values, need at least %d", len(vals), MinAnomalyObservation)
		return ca
	}
	var outside func(x float64) bool
	switch method {
	case MethodZScore:
		var w welford
		for _, x := range vals {
			w.add(x)
		}
		std, _ := w.std()
		ca.Center, ca.Spread = finite(w.mean), finite(std)
		if std == 0 || ca.Center == nil || ca.Spread == nil {
			ca.Reason = "zero variance"
			return ca
		}
		ca.Lower = finite(w.mean - cutoff*std)
		ca.Upper = finite(w.mean + cutoff*std)
		outside = func(x float64) bool { return math.Abs(x-w.mean) > cutoff*std }
	case MethodMAD:
		median, mad := medianMAD(vals)
		ca.Center, ca.Spread = finite(median), finite(mad)
		if mad == 0 || ca.Center == nil || ca.Spread == nil {
			ca.Reason = "zero median absolute deviation"
			return ca
		}
		ca.Lower = finite(median - cutoff*mad/0.6745)
		ca.Upper = finite(median + cutoff*mad/0.6745)
		outside = func(x float64) bool { return math.Abs(0.6745*(x-median)/mad) > cutoff }
	default:
		sorted := sortedCopy(vals)
		q1 := nearestRank(sorted, 0.25)
		q3 := nearestRank(sorted, 0.75)
		iqr := q3 - q1
		lo, hi := q1-cutoff*iqr, q3+cutoff*iqr
		ca.Q1, ca.Q3, ca.IQR = finite(q1), finite(q3), finite(iqr)
		ca.Lower, ca.Upper = finite(lo), finite(hi)
		if ca.Lower == nil || ca.Upper == nil {
			ca.Reason = "bounds overflow float64"
			return ca
		}
		outside = func(x float64) bool { return x < lo || x > hi }
	}
	for i, x := range vals {
		if outside(x) {
			ca.Anomalies = append(ca.Anomalies, Anomaly{Row: rows[i], Column: c.Name(), Value: c.Value(rows[i]).Interface()})
		}
	}
	ca.Count = len(ca.Anomalies)
	return ca
}

// Markdown renders a short per-column summary.
func (r *AnomalyReport) Markdown() string {
	var b strings.Builder
	b.WriteString("[ANOMALIES]\n")
	b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	b.WriteString(fmt.Sprintf("Method: %s (cutoff %.4g)\n", r.Method, r.Cutoff))
	pct := 0.0
	if r.Rows > 0 {
		pct = float64(r.Anomalous) * 100 / float64(r.Rows)
	}
	b.WriteString(fmt.Sprintf("Flagged: %d values in %d/%d rows (%.1f%%)\n\n", r.Total, r.Anomalous, r.Rows, pct))
	for _, c := range r.Columns {
		if c.Skipped {
			b.WriteString(fmt.Sprintf("- %s: skipped (%s)\n", safeName(c.Column), c.Reason))
			continue
		}
		b.WriteString(fmt.Sprintf("- %s: %d outliers", safeName(c.Column), c.Count))
		if c.Lower != nil && c.Upper != nil {
			b.WriteString(fmt.Sprintf(" outside [%.4g, %.4g]", *c.Lower, *c.Upper))
		}
		if c.Reason != "" {
			b.WriteString(fmt.Sprintf(" (%s)", c.Reason))
		}
		b.WriteString("\n")
		lim := len(c.Anomalies)
		if lim > 10 {
			lim = 10
		}
		for _, a := range c.Anomalies[:lim] {
			b.WriteString(fmt.Sprintf("  • row %d: %s\n", a.Row, fmtNumber(a.Value)))
		}
		if len(c.Anomalies) > lim {
			b.WriteString(fmt.Sprintf("  • ... %d more\n", len(c.Anomalies)-lim))
		}
	}
	return b.String()
}

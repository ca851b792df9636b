package engine

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/dfops/internal/analysis"
	"github.com/KaramelBytes/dfops/internal/dataset"
)

// OperationResult is a tagged union: exactly one field is set, named after
// the operation that produced it.
type OperationResult struct {
	Comparison  *analysis.ComparisonReport  `json:"comparison,omitempty"`
	Schema      *analysis.SchemaValidation  `json:"schema,omitempty"`
	Merge       *dataset.Table              `json:"merge,omitempty"`
	Profile     *analysis.ProfileReport     `json:"profile,omitempty"`
	Aggregate   *dataset.Table              `json:"aggregate,omitempty"`
	Anomalies   *analysis.AnomalyReport     `json:"anomalies,omitempty"`
	Quality     *analysis.QualityReport     `json:"quality,omitempty"`
	Pivot       *dataset.Table              `json:"pivot,omitempty"`
	Correlation *analysis.CorrelationMatrix `json:"correlation,omitempty"`
	Catalog     *CatalogResult              `json:"catalog,omitempty"`

	// data backs the table-shaped variants.
	data *dataset.Dataset
}

// Variant returns the name of the populated field's JSON key.
func (r OperationResult) Variant() string {
	switch {
	case r.Comparison != nil:
		return "comparison"
	case r.Schema != nil:
		return "schema"
	case r.Merge != nil:
		return "merge"
	case r.Profile != nil:
		return "profile"
	case r.Aggregate != nil:
		return "aggregate"
	case r.Anomalies != nil:
		return "anomalies"
	case r.Quality != nil:
		return "quality"
	case r.Pivot != nil:
		return "pivot"
	case r.Correlation != nil:
		return "correlation"
	case r.Catalog != nil:
		return "catalog"
	}
	return ""
}

func tableResult(op string, d *dataset.Dataset) OperationResult {
	r := OperationResult{data: d}
	t := d.Table()
	switch op {
	case OpMerge:
		r.Merge = t
	case OpAggregate:
		r.Aggregate = t
	case OpPivot:
		r.Pivot = t
	}
	return r
}

// Response is the envelope returned for every executed request.
type Response struct {
	ID         string          `json:"id"`
	Operation  string          `json:"operation"`
	Files      []string        `json:"files"`
	DurationMS int64           `json:"duration_ms"`
	Message    string          `json:"message,omitempty"`
	Result     OperationResult `json:"result"`
}

// Dataset returns the table produced by merge, aggregate or pivot, or nil
// for report-shaped results.
func (r *Response) Dataset() *dataset.Dataset { return r.Result.data }

// previewRows bounds tables rendered as markdown.
const previewRows = 50

// Markdown renders the result in the sectioned text layout of the CLI.
func (r *Response) Markdown() string {
	res := r.Result
	switch {
	case res.Comparison != nil:
		return res.Comparison.Markdown()
	case res.Schema != nil:
		return res.Schema.Markdown()
	case res.Profile != nil:
		return res.Profile.Markdown()
	case res.Anomalies != nil:
		return res.Anomalies.Markdown()
	case res.Quality != nil:
		return res.Quality.Markdown()
	case res.Correlation != nil:
		return res.Correlation.Markdown()
	case res.Catalog != nil:
		return catalogMarkdown(res.Catalog)
	}
	if d := r.Dataset(); d != nil {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("[%s]\n", strings.ToUpper(r.Operation)))
		b.WriteString(fmt.Sprintf("%s: %d rows x %d columns\n\n", d.Name(), d.NumRows(), d.NumCols()))
		b.WriteString(d.Table().Markdown(previewRows))
		return b.String()
	}
	return r.Message + "\n"
}

func catalogMarkdown(c *CatalogResult) string {
	var b strings.Builder
	b.WriteString("[OPERATIONS]\n")
	for _, op := range c.Operations {
		b.WriteString(fmt.Sprintf("- %s: %s\n", op.Name, op.Description))
		for _, p := range op.Params {
			req := ""
			if p.Required {
				req = ", required"
			}
			def := ""
			if p.Default != nil {
				def = fmt.Sprintf(" (default %v)", p.Default)
			}
			b.WriteString(fmt.Sprintf("  • %s (%s%s): %s%s\n", p.Name, p.Type, req, p.Description, def))
		}
	}
	b.WriteString(fmt.Sprintf("\nAggregate functions: %s\n", strings.Join(c.AggregateFunctions, ", ")))
	b.WriteString(fmt.Sprintf("Anomaly methods: %s\n", strings.Join(c.AnomalyMethods, ", ")))
	b.WriteString(fmt.Sprintf("Join types: %s\n", strings.Join(c.JoinTypes, ", ")))
	return b.String()
}

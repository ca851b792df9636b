package analysis

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

// DefaultSampleLimit caps the differing rows kept per direction.
const DefaultSampleLimit = 100

// CompareOptions tunes Compare.
type CompareOptions struct {
	// SampleLimit bounds each row sample; 0 means DefaultSampleLimit and a
	// negative value disables samples.
	SampleLimit int
}

// TypeMismatch is a shared column whose inferred type differs.
type TypeMismatch struct {
	Column string       `json:"column"`
	Left   dataset.Type `json:"left"`
	Right  dataset.Type `json:"right"`
}

// SchemaDiff lists the structural differences between two schemas.
type SchemaDiff struct {
	MissingInLeft  []string       `json:"missing_in_left"`
	MissingInRight []string       `json:"missing_in_right"`
	TypeMismatches []TypeMismatch `json:"type_mismatches"`
	// OrderDiffers is set when both sides have the same columns and types
	// in a different order.
	OrderDiffers bool `json:"order_differs"`
}

// Empty reports whether the schemas were equal.
func (s SchemaDiff) Empty() bool {
	return len(s.MissingInLeft) == 0 && len(s.MissingInRight) == 0 &&
		len(s.TypeMismatches) == 0 && !s.OrderDiffers
}

// RowDiff is one direction of a row-level diff.
type RowDiff struct {
	Count     int            `json:"count"`
	Sample    *dataset.Table `json:"sample"`
	Truncated bool           `json:"truncated"`
}

// ComparisonReport is the result of Compare. Rows are only diffed when
// the schemas match; otherwise OnlyInLeft and OnlyInRight are nil.
type ComparisonReport struct {
	Left        string      `json:"left"`
	Right       string      `json:"right"`
	LeftRows    int         `json:"left_rows"`
	RightRows   int         `json:"right_rows"`
	SchemaMatch bool        `json:"schema_match"`
	Schema      *SchemaDiff `json:"schema_diff,omitempty"`
	OnlyInLeft  *RowDiff    `json:"only_in_left,omitempty"`
	OnlyInRight *RowDiff    `json:"only_in_right,omitempty"`
	Identical   bool        `json:"identical"`
}

// DiffSchemas compares two schemas by column name.
func DiffSchemas(left, right dataset.Schema) SchemaDiff {
	diff := SchemaDiff{MissingInLeft: []string{}, MissingInRight: []string{}, TypeMismatches: []TypeMismatch{}}
	for _, f := range left {
		j := right.Index(f.Name)
		if j < 0 {
			diff.MissingInRight = append(diff.MissingInRight, f.Name)
			continue
		}
		if right[j].Type != f.Type {
			diff.TypeMismatches = append(diff.TypeMismatches, TypeMismatch{Column: f.Name, Left: f.Type, Right: right[j].Type})
		}
	}
	for _, f := range right {
		if left.Index(f.Name) < 0 {
			diff.MissingInLeft = append(diff.MissingInLeft, f.Name)
		}
	}
	if len(diff.MissingInLeft) == 0 && len(diff.MissingInRight) == 0 &&
		len(diff.TypeMismatches) == 0 && !left.Equal(right) {
		diff.OrderDiffers = true
	}
	return diff
}

// Compare reports row counts, schema differences and, when the schemas
// match exactly, the multiset difference of full rows in both directions.
// A row that occurs twice in a and once in b counts once in OnlyInLeft.
func Compare(a, b *dataset.Dataset, opt CompareOptions) *ComparisonReport {
	limit := opt.SampleLimit
	if limit == 0 {
		limit = DefaultSampleLimit
	}
	rep := &ComparisonReport{
		Left:      a.Name(),
		Right:     b.Name(),
		LeftRows:  a.NumRows(),
		RightRows: b.NumRows(),
	}
	diff := DiffSchemas(a.Schema(), b.Schema())
	if !diff.Empty() {
		rep.Schema = &diff
		return rep
	}
	rep.SchemaMatch = true
	rep.OnlyInLeft = exceptAll(a, b, limit)
	rep.OnlyInRight = exceptAll(b, a, limit)
	rep.Identical = rep.OnlyInLeft.Count == 0 && rep.OnlyInRight.Count == 0
	return rep
}

// exceptAll returns the rows of x not matched by a distinct row of y,
// in x's order.
func exceptAll(x, y *dataset.Dataset, limit int) *RowDiff {
	remaining := make(map[string]int, y.NumRows())
	for i := 0; i < y.NumRows(); i++ {
		remaining[y.RowKey(i)]++
	}
	sample := [][]any{}
	out := &RowDiff{}
	for i := 0; i < x.NumRows(); i++ {
		k := x.RowKey(i)
		if remaining[k] > 0 {
			remaining[k]--
			continue
		}
		out.Count++
		if limit < 0 {
			continue
		}
		if len(sample) < limit {
			sample = append(sample, tableRow(x.Row(i)))
		} else {
			out.Truncated = true
		}
	}
	if limit >= 0 {
		out.Sample = &dataset.Table{Name: x.Name(), Columns: x.Schema(), Rows: sample}
	}
	return out
}

func tableRow(vals []dataset.Value) []any {
	row := make([]any, len(vals))
	for j, v := range vals {
		row[j] = v.Interface()
	}
	return row
}

// FileSchemaDiff is one dataset whose schema differs from the reference.
type FileSchemaDiff struct {
	File string     `json:"file"`
	Diff SchemaDiff `json:"diff"`
}

// SchemaValidation reports whether several datasets share one schema.
type SchemaValidation struct {
	Reference  string           `json:"reference"`
	Schema     dataset.Schema   `json:"schema"`
	Files      int              `json:"files"`
	Consistent bool             `json:"consistent"`
	Mismatches []FileSchemaDiff `json:"mismatches"`
}

// ValidateSchemas compares the schema of every dataset with the first.
func ValidateSchemas(ds []*dataset.Dataset) (*SchemaValidation, error) {
	if len(ds) == 0 {
		return nil, dataset.Invalid("schema validation needs at least one dataset")
	}
	ref := ds[0].Schema()
	out := &SchemaValidation{Reference: ds[0].Name(), Schema: ref, Files: len(ds), Consistent: true, Mismatches: []FileSchemaDiff{}}
	for _, d := range ds[1:] {
		diff := DiffSchemas(ref, d.Schema())
		if diff.Empty() {
			continue
		}
		out.Consistent = false
		out.Mismatches = append(out.Mismatches, FileSchemaDiff{File: d.Name(), Diff: diff})
	}
	return out, nil
}

func (r *ComparisonReport) Markdown() string {
	var b strings.Builder
	b.WriteString("[COMPARISON]\n")
	b.WriteString(fmt.Sprintf("Left: %s (%d rows)\n", r.Left, r.LeftRows))
	b.WriteString(fmt.Sprintf("Right: %s (%d rows)\n", r.Right, r.RightRows))
	if !r.SchemaMatch {
		b.WriteString("Schemas differ; rows were not compared.\n\n[SCHEMA DIFFERENCES]\n")
		writeSchemaDiff(&b, *r.Schema)
		return b.String()
	}
	if r.Identical {
		b.WriteString("Identical: yes\n")
		return b.String()
	}
	b.WriteString("Identical: no\n")
	b.WriteString(fmt.Sprintf("Only in left: %d\n", r.OnlyInLeft.Count))
	b.WriteString(fmt.Sprintf("Only in right: %d\n", r.OnlyInRight.Count))
	return b.String()
}

func writeSchemaDiff(b *strings.Builder, d SchemaDiff) {
	if len(d.MissingInLeft) > 0 {
		b.WriteString(fmt.Sprintf("- missing in left: %s\n", strings.Join(d.MissingInLeft, ", ")))
	}
	if len(d.MissingInRight) > 0 {
		b.WriteString(fmt.Sprintf("- missing in right: %s\n", strings.Join(d.MissingInRight, ", ")))
	}
	for _, m := range d.TypeMismatches {
		b.WriteString(fmt.Sprintf("- %s: %s vs %s\n", m.Column, m.Left, m.Right))
	}
	if d.OrderDiffers {
		b.WriteString("- same columns in a different order\n")
	}
}

func (v *SchemaValidation) Markdown() string {
	var b strings.Builder
	b.WriteString("[SCHEMA VALIDATION]\n")
	b.WriteString(fmt.Sprintf("Reference: %s %s\n", v.Reference, v.Schema))
	if v.Consistent {
		b.WriteString(fmt.Sprintf("All %d files share the same schema.\n", v.Files))
		return b.String()
	}
	for _, m := range v.Mismatches {
		b.WriteString(fmt.Sprintf("\n%s:\n", m.File))
		writeSchemaDiff(&b, m.Diff)
	}
	return b.String()
}

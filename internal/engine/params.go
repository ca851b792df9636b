package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/KaramelBytes/dfops/internal/analysis"
	"github.com/KaramelBytes/dfops/internal/dataset"
)

// Request names an operation and carries its JSON parameters.
type Request struct {
	Operation string          `json:"operation"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// params is implemented by every per-operation parameter struct.
type params interface {
	// files lists the file identifiers the operation reads, in order.
	files() []string
	validate() error
}

// CompareParams configures the compare operation.
type CompareParams struct {
	Left        string `json:"left"`
	Right       string `json:"right"`
	SampleLimit int    `json:"sample_limit,omitempty"`
}

func (p *CompareParams) files() []string { return []string{p.Left, p.Right} }

func (p *CompareParams) validate() error {
	return requireFields(field{"left", p.Left}, field{"right", p.Right})
}

// MergeParams configures the merge operation.
type MergeParams struct {
	Left   string   `json:"left"`
	Right  string   `json:"right"`
	On     []string `json:"on"`
	How    string   `json:"how,omitempty"`
	Suffix string   `json:"suffix,omitempty"`
}

func (p *MergeParams) files() []string { return []string{p.Left, p.Right} }

func (p *MergeParams) validate() error {
	if err := requireFields(field{"left", p.Left}, field{"right", p.Right}); err != nil {
		return err
	}
	if len(p.On) == 0 {
		return dataset.Invalid("missing required parameter %q", "on")
	}
	how, err := analysis.ParseJoinType(p.How)
	if err != nil {
		return err
	}
	p.How = string(how)
	if p.Suffix == "" {
		p.Suffix = analysis.DefaultSuffix
	}
	return nil
}

// ProfileParams configures the profile operation.
type ProfileParams struct {
	File      string `json:"file"`
	TopValues int    `json:"top_values,omitempty"`
}

func (p *ProfileParams) files() []string { return []string{p.File} }
func (p *ProfileParams) validate() error { return requireFields(field{"file", p.File}) }

// SchemaParams configures validate_schema.
type SchemaParams struct {
	Files []string `json:"files"`
}

func (p *SchemaParams) files() []string { return p.Files }

func (p *SchemaParams) validate() error {
	if len(p.Files) == 0 {
		return dataset.Invalid("missing required parameter %q", "files")
	}
	for i, f := range p.Files {
		if strings.TrimSpace(f) == "" {
			return dataset.Invalid("files[%d] is empty", i)
		}
	}
	return nil
}

// AggregateParams configures the aggregate operation.
type AggregateParams struct {
	File         string                `json:"file"`
	GroupBy      []string              `json:"group_by"`
	Aggregations analysis.Aggregations `json:"aggregations"`
}

func (p *AggregateParams) files() []string { return []string{p.File} }

func (p *AggregateParams) validate() error {
	if err := requireFields(field{"file", p.File}); err != nil {
		return err
	}
	if len(p.Aggregations) == 0 {
		return dataset.Invalid("missing required parameter %q", "aggregations")
	}
	return nil
}

// AnomalyParams configures detect_anomalies.
type AnomalyParams struct {
	File    string   `json:"file"`
	Columns []string `json:"columns,omitempty"`
	Method  string   `json:"method,omitempty"`
	// Threshold is the IQR multiplier for iqr and the cutoff for zscore and mad.
	Threshold float64 `json:"threshold,omitempty"`
}

func (p *AnomalyParams) files() []string { return []string{p.File} }

func (p *AnomalyParams) validate() error {
	if err := requireFields(field{"file", p.File}); err != nil {
		return err
	}
	m, err := analysis.ParseAnomalyMethod(p.Method)
	if err != nil {
		return err
	}
	p.Method = string(m)
	if p.Threshold < 0 {
		return dataset.Invalid("threshold must be positive, got %g", p.Threshold)
	}
	return nil
}

// QualityParams configures data_quality.
type QualityParams struct {
	File string `json:"file"`
}

func (p *QualityParams) files() []string { return []string{p.File} }
func (p *QualityParams) validate() error { return requireFields(field{"file", p.File}) }

// PivotParams configures the pivot operation.
type PivotParams struct {
	File    string `json:"file"`
	Index   string `json:"index"`
	Columns string `json:"columns"`
	Values  string `json:"values"`
	Func    string `json:"func,omitempty"`
}

func (p *PivotParams) files() []string { return []string{p.File} }

func (p *PivotParams) validate() error {
	if p.Func == "" {
		p.Func = analysis.DefaultPivotFunc
	}
	return requireFields(field{"file", p.File}, field{"index", p.Index},
		field{"columns", p.Columns}, field{"values", p.Values})
}

// CorrelationParams configures the correlation operation.
type CorrelationParams struct {
	File    string   `json:"file"`
	Columns []string `json:"columns,omitempty"`
}

func (p *CorrelationParams) files() []string { return []string{p.File} }
func (p *CorrelationParams) validate() error { return requireFields(field{"file", p.File}) }

// listParams is the empty parameter set of the list operation.
type listParams struct{}

func (listParams) files() []string { return nil }
func (listParams) validate() error { return nil }

type field struct {
	name, value string
}

func requireFields(fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return dataset.Invalid("missing required parameter %q", f.name)
		}
	}
	return nil
}

// decodeParams strictly decodes raw into p and validates it. Absent or
// null parameters decode as an empty object.
func decodeParams(op string, raw json.RawMessage, p params) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		if dataset.KindOf(err) == dataset.KindValidation {
			return err
		}
		return dataset.Invalid("invalid %s parameters: %v", op, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return dataset.Invalid("invalid %s parameters: trailing data after object", op)
	}
	return p.validate()
}

package engine

import (
	"context"
	"sort"

	"github.com/KaramelBytes/dfops/internal/analysis"
	"github.com/KaramelBytes/dfops/internal/dataset"
)

// Operation names accepted by Execute.
const (
	OpCompare        = "compare"
	OpMerge          = "merge"
	OpProfile        = "profile"
	OpValidateSchema = "validate_schema"
	OpAggregate      = "aggregate"
	OpAnomalies      = "detect_anomalies"
	OpQuality        = "data_quality"
	OpPivot          = "pivot"
	OpCorrelation    = "correlation"
	OpList           = "list"
)

// ParamSpec describes one operation parameter.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description"`
}

// OperationSpec is one catalog entry. Files is the number of datasets the
// operation reads; -1 means one or more.
type OperationSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Files       int         `json:"files"`
	Params      []ParamSpec `json:"params"`
}

// CatalogResult is the payload of the list operation.
type CatalogResult struct {
	Operations         []OperationSpec `json:"operations"`
	AggregateFunctions []string        `json:"aggregate_functions"`
	AnomalyMethods     []string        `json:"anomaly_methods"`
	JoinTypes          []string        `json:"join_types"`
}

// runFunc executes an operation on its decoded parameters and loaded
// datasets, which appear in the order of params.files().
type runFunc func(ctx context.Context, e *Engine, p params, ds []*dataset.Dataset) (OperationResult, error)

type operation struct {
	spec      OperationSpec
	newParams func() params
	run       runFunc
}

var operations = map[string]operation{
	OpCompare: {
		spec: OperationSpec{
			Name:        OpCompare,
			Description: "Compare the schemas and rows of two datasets",
			Files:       2,
			Params: []ParamSpec{
				{Name: "left", Type: "string", Required: true, Description: "left file"},
				{Name: "right", Type: "string", Required: true, Description: "right file"},
				{Name: "sample_limit", Type: "integer", Default: analysis.DefaultSampleLimit, Description: "differing rows kept per direction; negative disables samples"},
			},
		},
		newParams: func() params { return &CompareParams{} },
		run:       runCompare,
	},
	OpMerge: {
		spec: OperationSpec{
			Name:        OpMerge,
			Description: "Join two datasets on key columns",
			Files:       2,
			Params: []ParamSpec{
				{Name: "left", Type: "string", Required: true, Description: "left file"},
				{Name: "right", Type: "string", Required: true, Description: "right file"},
				{Name: "on", Type: "string[]", Required: true, Description: "key columns present in both files"},
				{Name: "how", Type: "string", Default: string(analysis.InnerJoin), Description: "inner, left, right or outer"},
				{Name: "suffix", Type: "string", Default: analysis.DefaultSuffix, Description: "suffix for colliding right-side columns"},
			},
		},
		newParams: func() params { return &MergeParams{} },
		run:       runMerge,
	},
	OpProfile: {
		spec: OperationSpec{
			Name:        OpProfile,
			Description: "Per-column descriptive statistics",
			Files:       1,
			Params: []ParamSpec{
				{Name: "file", Type: "string", Required: true, Description: "input file"},
				{Name: "top_values", Type: "integer", Default: analysis.DefaultTopValues, Description: "frequent values listed per text column; negative disables"},
			},
		},
		newParams: func() params { return &ProfileParams{} },
		run:       runProfile,
	},
	OpValidateSchema: {
		spec: OperationSpec{
			Name:        OpValidateSchema,
			Description: "Check that several files share the schema of the first",
			Files:       -1,
			Params: []ParamSpec{
				{Name: "files", Type: "string[]", Required: true, Description: "files to check; the first is the reference"},
			},
		},
		newParams: func() params { return &SchemaParams{} },
		run:       runValidateSchema,
	},
	OpAggregate: {
		spec: OperationSpec{
			Name:        OpAggregate,
			Description: "Group rows and aggregate columns",
			Files:       1,
			Params: []ParamSpec{
				{Name: "file", Type: "string", Required: true, Description: "input file"},
				{Name: "group_by", Type: "string[]", Description: "grouping columns; empty aggregates the whole file"},
				{Name: "aggregations", Type: "object[]", Required: true, Description: "[{column, function}] or {column: function}; functions: sum, count, mean, min, max"},
			},
		},
		newParams: func() params { return &AggregateParams{} },
		run:       runAggregate,
	},
	OpAnomalies: {
		spec: OperationSpec{
			Name:        OpAnomalies,
			Description: "Flag outliers in numeric columns",
			Files:       1,
			Params: []ParamSpec{
				{Name: "file", Type: "string", Required: true, Description: "input file"},
				{Name: "columns", Type: "string[]", Description: "numeric columns; empty means all"},
				{Name: "method", Type: "string", Default: string(analysis.MethodIQR), Description: "iqr, zscore or mad"},
				{Name: "threshold", Type: "number", Default: analysis.DefaultIQRMultiplier, Description: "IQR multiplier, or the zscore/mad cutoff"},
			},
		},
		newParams: func() params { return &AnomalyParams{} },
		run:       runAnomalies,
	},
	OpQuality: {
		spec: OperationSpec{
			Name:        OpQuality,
			Description: "Score completeness, duplicates and outliers",
			Files:       1,
			Params: []ParamSpec{
				{Name: "file", Type: "string", Required: true, Description: "input file"},
			},
		},
		newParams: func() params { return &QualityParams{} },
		run:       runQuality,
	},
	OpPivot: {
		spec: OperationSpec{
			Name:        OpPivot,
			Description: "Reshape distinct column values into columns",
			Files:       1,
			Params: []ParamSpec{
				{Name: "file", Type: "string", Required: true, Description: "input file"},
				{Name: "index", Type: "string", Required: true, Description: "row key column"},
				{Name: "columns", Type: "string", Required: true, Description: "column whose values become output columns"},
				{Name: "values", Type: "string", Required: true, Description: "column aggregated into the cells"},
				{Name: "func", Type: "string", Default: analysis.DefaultPivotFunc, Description: "aggregation for colliding cells"},
			},
		},
		newParams: func() params { return &PivotParams{} },
		run:       runPivot,
	},
	OpCorrelation: {
		spec: OperationSpec{
			Name:        OpCorrelation,
			Description: "Pairwise Pearson correlation of numeric columns",
			Files:       1,
			Params: []ParamSpec{
				{Name: "file", Type: "string", Required: true, Description: "input file"},
				{Name: "columns", Type: "string[]", Description: "numeric columns; empty means all"},
			},
		},
		newParams: func() params { return &CorrelationParams{} },
		run:       runCorrelation,
	},
}

// list reads the catalog it is part of, so it is registered at init to
// avoid an initialization cycle.
func init() {
	operations[OpList] = operation{
		spec: OperationSpec{
			Name:        OpList,
			Description: "List the available operations",
			Params:      []ParamSpec{},
		},
		newParams: func() params { return &listParams{} },
		run: func(context.Context, *Engine, params, []*dataset.Dataset) (OperationResult, error) {
			c := Catalog()
			return OperationResult{Catalog: &c}, nil
		},
	}
}

// Catalog returns the static operation catalog sorted by name.
func Catalog() CatalogResult {
	specs := make([]OperationSpec, 0, len(operations))
	for _, op := range operations {
		specs = append(specs, op.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return CatalogResult{
		Operations:         specs,
		AggregateFunctions: analysis.AggregateFunctions(),
		AnomalyMethods:     []string{string(analysis.MethodIQR), string(analysis.MethodZScore), string(analysis.MethodMAD)},
		JoinTypes:          []string{string(analysis.InnerJoin), string(analysis.LeftJoin), string(analysis.RightJoin), string(analysis.OuterJoin)},
	}
}

// Operations returns the sorted operation names.
func Operations() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

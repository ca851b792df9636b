package engine

import (
	"context"
	"fmt"

	"github.com/KaramelBytes/dfops/internal/analysis"
	"github.com/KaramelBytes/dfops/internal/dataset"
	"github.com/KaramelBytes/dfops/internal/logging"
)

func runCompare(_ context.Context, e *Engine, p params, ds []*dataset.Dataset) (OperationResult, error) {
	cp := p.(*CompareParams)
	limit := cp.SampleLimit
	if limit == 0 {
		limit = e.opts.SampleLimit
	}
	return OperationResult{Comparison: analysis.Compare(ds[0], ds[1], analysis.CompareOptions{SampleLimit: limit})}, nil
}

func runMerge(_ context.Context, _ *Engine, p params, ds []*dataset.Dataset) (OperationResult, error) {
	mp := p.(*MergeParams)
	out, err := analysis.Merge(ds[0], ds[1], analysis.MergeOptions{
		On:     mp.On,
		How:    analysis.JoinType(mp.How),
		Suffix: mp.Suffix,
	})
	if err != nil {
		return OperationResult{}, err
	}
	return tableResult(OpMerge, out), nil
}

func runProfile(_ context.Context, _ *Engine, p params, ds []*dataset.Dataset) (OperationResult, error) {
	pp := p.(*ProfileParams)
	return OperationResult{Profile: analysis.Profile(ds[0], analysis.ProfileOptions{TopValues: pp.TopValues})}, nil
}

func runValidateSchema(_ context.Context, _ *Engine, _ params, ds []*dataset.Dataset) (OperationResult, error) {
	v, err := analysis.ValidateSchemas(ds)
	if err != nil {
		return OperationResult{}, err
	}
	return OperationResult{Schema: v}, nil
}

func runAggregate(_ context.Context, _ *Engine, p params, ds []*dataset.Dataset) (OperationResult, error) {
	ap := p.(*AggregateParams)
	out, err := analysis.Aggregate(ds[0], ap.GroupBy, ap.Aggregations)
	if err != nil {
		return OperationResult{}, err
	}
	return tableResult(OpAggregate, out), nil
}

func runAnomalies(ctx context.Context, e *Engine, p params, ds []*dataset.Dataset) (OperationResult, error) {
	ap := p.(*AnomalyParams)
	opt := analysis.AnomalyOptions{Columns: ap.Columns, Method: analysis.AnomalyMethod(ap.Method)}
	if opt.Method == analysis.MethodIQR {
		opt.Multiplier = ap.Threshold
		if opt.Multiplier == 0 {
			opt.Multiplier = e.opts.AnomalyMultiplier
		}
	} else {
		opt.Threshold = ap.Threshold
	}
	rep, err := analysis.DetectAnomalies(ds[0], opt)
	if err != nil {
		return OperationResult{}, err
	}
	log := logging.FromContext(ctx)
	for _, c := range rep.Columns {
		if c.Reason != "" {
			log.Debug("anomaly column degraded", "column", c.Column, "reason", c.Reason)
		}
	}
	return OperationResult{Anomalies: rep}, nil
}

func runQuality(_ context.Context, _ *Engine, _ params, ds []*dataset.Dataset) (OperationResult, error) {
	rep, err := analysis.DataQuality(ds[0])
	if err != nil {
		return OperationResult{}, err
	}
	return OperationResult{Quality: rep}, nil
}

func runPivot(_ context.Context, _ *Engine, p params, ds []*dataset.Dataset) (OperationResult, error) {
	pp := p.(*PivotParams)
	out, err := analysis.Pivot(ds[0], analysis.PivotOptions{
		Index:   pp.Index,
		Columns: pp.Columns,
		Values:  pp.Values,
		Func:    pp.Func,
	})
	if err != nil {
		return OperationResult{}, err
	}
	return tableResult(OpPivot, out), nil
}

func runCorrelation(ctx context.Context, _ *Engine, p params, ds []*dataset.Dataset) (OperationResult, error) {
	cp := p.(*CorrelationParams)
	m, err := analysis.Correlation(ds[0], cp.Columns)
	if err != nil {
		return OperationResult{}, err
	}
	log := logging.FromContext(ctx)
	for _, n := range m.Notes {
		log.Debug("correlation degraded", "note", n)
	}
	return OperationResult{Correlation: m}, nil
}

// summary is the one-line message attached to a Response.
func (r OperationResult) summary() string {
	switch {
	case r.Comparison != nil:
		c := r.Comparison
		switch {
		case !c.SchemaMatch:
			return "schemas differ; rows were not compared"
		case c.Identical:
			return "datasets are identical"
		}
		return fmt.Sprintf("%d rows only in %s, %d rows only in %s", c.OnlyInLeft.Count, c.Left, c.OnlyInRight.Count, c.Right)
	case r.Schema != nil:
		if r.Schema.Consistent {
			return fmt.Sprintf("all %d files share the same schema", r.Schema.Files)
		}
		return fmt.Sprintf("%d of %d files differ from %s", len(r.Schema.Mismatches), r.Schema.Files, r.Schema.Reference)
	case r.Profile != nil:
		return fmt.Sprintf("profiled %d columns over %d rows", len(r.Profile.Columns), r.Profile.Rows)
	case r.Anomalies != nil:
		return fmt.Sprintf("%d outliers in %d of %d rows", r.Anomalies.Total, r.Anomalies.Anomalous, r.Anomalies.Rows)
	case r.Quality != nil:
		return r.Quality.Summary()
	case r.Correlation != nil:
		return fmt.Sprintf("%d columns, %d pairs", len(r.Correlation.Columns), len(r.Correlation.Pairs))
	case r.Catalog != nil:
		return fmt.Sprintf("%d operations", len(r.Catalog.Operations))
	case r.data != nil:
		return fmt.Sprintf("%d rows x %d columns", r.data.NumRows(), r.data.NumCols())
	}
	return ""
}

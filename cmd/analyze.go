package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dfops/internal/analysis"
	"github.com/KaramelBytes/dfops/internal/engine"
)

var (
	prfTopValues int

	anmColumns   []string
	anmMethod    string
	anmThreshold float64

	corColumns []string

	aggGroupBy []string
	aggSpecs   []string
	aggOutput  string

	pvtIndex   string
	pvtColumns string
	pvtValues  string
	pvtFunc    string
	pvtOutput  string
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Per-column descriptive statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, engine.OpProfile, engine.ProfileParams{File: args[0], TopValues: prfTopValues}, "")
	},
}

var qualityCmd = &cobra.Command{
	Use:   "quality <file>",
	Short: "Score completeness, duplicates and outliers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, engine.OpQuality, engine.QualityParams{File: args[0]}, "")
	},
}

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies <file>",
	Short: "Flag outliers in numeric columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, engine.OpAnomalies, engine.AnomalyParams{
			File:      args[0],
			Columns:   anmColumns,
			Method:    anmMethod,
			Threshold: anmThreshold,
		}, "")
	},
}

var correlationCmd = &cobra.Command{
	Use:   "correlation <file>",
	Short: "Pairwise Pearson correlation of numeric columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, engine.OpCorrelation, engine.CorrelationParams{File: args[0], Columns: corColumns}, "")
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <file>",
	Short: "Group rows and aggregate columns",
	Example: `  dfops aggregate sales.csv --group-by region --agg sales:sum --agg sales:count
  dfops aggregate sales.csv --agg price:mean -o summary.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		aggs, err := parseAggSpecs(aggSpecs)
		if err != nil {
			return err
		}
		return runOperation(cmd, engine.OpAggregate, engine.AggregateParams{
			File:         args[0],
			GroupBy:      aggGroupBy,
			Aggregations: aggs,
		}, aggOutput)
	},
}

var pivotCmd = &cobra.Command{
	Use:   "pivot <file>",
	Short: "Reshape distinct column values into columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, engine.OpPivot, engine.PivotParams{
			File:    args[0],
			Index:   pvtIndex,
			Columns: pvtColumns,
			Values:  pvtValues,
			Func:    pvtFunc,
		}, pvtOutput)
	},
}

// parseAggSpecs reads "column:function" flags; '=' is accepted as well.
func parseAggSpecs(specs []string) (analysis.Aggregations, error) {
	out := make(analysis.Aggregations, 0, len(specs))
	for _, s := range specs {
		i := strings.LastIndexAny(s, ":=")
		if i <= 0 || i == len(s)-1 {
			return nil, fmt.Errorf("invalid --agg %q (use column:function)", s)
		}
		out = append(out, analysis.Aggregation{
			Column:   strings.TrimSpace(s[:i]),
			Function: strings.TrimSpace(s[i+1:]),
		})
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().IntVar(&prfTopValues, "top", 0, "frequent values listed per text column (default 5; negative disables)")

	rootCmd.AddCommand(qualityCmd)

	rootCmd.AddCommand(anomaliesCmd)
	anomaliesCmd.Flags().StringSliceVar(&anmColumns, "columns", nil, "numeric columns to check (default all)")
	anomaliesCmd.Flags().StringVar(&anmMethod, "method", "iqr", "detection method: iqr, zscore or mad")
	anomaliesCmd.Flags().Float64Var(&anmThreshold, "threshold", 0, "IQR multiplier or zscore/mad cutoff (default per method)")

	rootCmd.AddCommand(correlationCmd)
	correlationCmd.Flags().StringSliceVar(&corColumns, "columns", nil, "numeric columns (default all)")

	rootCmd.AddCommand(aggregateCmd)
	aggregateCmd.Flags().StringSliceVar(&aggGroupBy, "group-by", nil, "grouping columns (default: whole file)")
	aggregateCmd.Flags().StringArrayVar(&aggSpecs, "agg", nil, "aggregation as column:function; repeatable")
	aggregateCmd.Flags().StringVarP(&aggOutput, "output", "o", "", "write the aggregated table to this CSV file")
	_ = aggregateCmd.MarkFlagRequired("agg")

	rootCmd.AddCommand(pivotCmd)
	pivotCmd.Flags().StringVar(&pvtIndex, "index", "", "row key column (required)")
	pivotCmd.Flags().StringVar(&pvtColumns, "columns", "", "column whose values become output columns (required)")
	pivotCmd.Flags().StringVar(&pvtValues, "values", "", "column aggregated into the cells (required)")
	pivotCmd.Flags().StringVar(&pvtFunc, "func", analysis.DefaultPivotFunc, "aggregation for colliding cells")
	pivotCmd.Flags().StringVarP(&pvtOutput, "output", "o", "", "write the pivoted table to this CSV file")
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dfops/internal/engine"
)

var (
	cmpSampleLimit int

	mrgOn     []string
	mrgHow    string
	mrgSuffix string
	mrgOutput string
)

var compareCmd = &cobra.Command{
	Use:   "compare <left> <right>",
	Short: "Compare the schemas and rows of two files",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, engine.OpCompare, engine.CompareParams{
			Left:        args[0],
			Right:       args[1],
			SampleLimit: cmpSampleLimit,
		}, "")
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <left> <right>",
	Short: "Join two files on key columns",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, engine.OpMerge, engine.MergeParams{
			Left:   args[0],
			Right:  args[1],
			On:     mrgOn,
			How:    mrgHow,
			Suffix: mrgSuffix,
		}, mrgOutput)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <file> [file...]",
	Short: "Check that files share the schema of the first",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, engine.OpValidateSchema, engine.SchemaParams{Files: args}, "")
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().IntVar(&cmpSampleLimit, "sample-limit", 0, "differing rows shown per side (default from config; negative disables)")

	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringSliceVar(&mrgOn, "on", nil, "key columns present in both files (required)")
	mergeCmd.Flags().StringVar(&mrgHow, "how", "inner", "join type: inner, left, right or outer")
	mergeCmd.Flags().StringVar(&mrgSuffix, "suffix", "", "suffix for colliding right-side columns (default _right)")
	mergeCmd.Flags().StringVarP(&mrgOutput, "output", "o", "", "write the merged table to this CSV file")
	_ = mergeCmd.MarkFlagRequired("on")

	rootCmd.AddCommand(validateCmd)
}

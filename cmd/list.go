package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dfops/internal/dataset"
	"github.com/KaramelBytes/dfops/internal/engine"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available operations and their parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, engine.OpList, struct{}{}, "")
	},
}

var sheetsCmd = &cobra.Command{
	Use:   "sheets <file.xlsx>",
	Short: "List the worksheets of an XLSX workbook, for use with --sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := dataset.SheetNames(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, n := range names {
			fmt.Fprintf(out, "%d. %s\n", i+1, n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(sheetsCmd)
}

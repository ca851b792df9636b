package cmd

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dfops/internal/analysis"
	"github.com/KaramelBytes/dfops/internal/dataset"
)

// resetFlags restores every flag to its default so values do not leak
// between invocations of the shared root command.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns its stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// setupHome isolates config under a temp HOME and writes files into it.
func setupHome(t *testing.T, files map[string]string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(home, name), []byte(body), 0o644))
	}
	return home
}

const salesCSV = "region,quarter,sales\nN,Q1,10\nS,Q1,5\nN,Q2,7\n"

func TestCLI_ListMarkdown(t *testing.T) {
	setupHome(t, nil)
	out, err := runCmd(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "[OPERATIONS]")
	assert.Contains(t, out, "- compare:")
	assert.Contains(t, out, "- detect_anomalies:")
}

func TestCLI_AggregateJSONAndOutput(t *testing.T) {
	home := setupHome(t, map[string]string{"sales.csv": salesCSV})
	dest := filepath.Join(home, "out", "agg.csv")

	out, err := runCmd(t, "--format", "json", "aggregate", filepath.Join(home, "sales.csv"),
		"--group-by", "region", "--agg", "sales:sum", "-o", dest)
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "aggregate", resp["operation"])
	assert.Equal(t, "2 rows x 2 columns", resp["message"])

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "region,sum_sales\nN,17\nS,5\n", string(b))
}

func TestCLI_CompareIdenticalAndYAML(t *testing.T) {
	home := setupHome(t, map[string]string{
		"a.csv": "id,v\n1,x\n2,y\n",
		"b.csv": "id,v\n2,y\n1,x\n",
	})
	out, err := runCmd(t, "compare", filepath.Join(home, "a.csv"), filepath.Join(home, "b.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "Identical: yes")

	out, err = runCmd(t, "--format", "yaml", "quality", filepath.Join(home, "a.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "operation: data_quality")
	assert.Contains(t, out, "quality:")
}

func TestCLI_SemicolonDelimiterAndDecimal(t *testing.T) {
	home := setupHome(t, map[string]string{"eu.csv": "name;price\na;1,5\nb;2,5\n"})
	out, err := runCmd(t, "--format", "json", "--delimiter", ";", "--decimal", "comma",
		"aggregate", filepath.Join(home, "eu.csv"), "--agg", "price:sum")
	require.NoError(t, err)
	assert.Contains(t, out, "4")
	assert.Contains(t, out, "sum_price")
}

func TestCLI_DelimiterHelpMatchesDefault(t *testing.T) {
	usage := rootCmd.PersistentFlags().Lookup("delimiter").Usage
	assert.Contains(t, usage, "default: tab for .tsv, else comma")

	home := setupHome(t, map[string]string{"s.tsv": "region\tsales\nN\t10\nS\t5\n"})
	out, err := runCmd(t, "--format", "json", "aggregate", filepath.Join(home, "s.tsv"), "--agg", "sales:sum")
	require.NoError(t, err)
	assert.Contains(t, out, "sum_sales")
}

func TestCLI_ErrorsCarryKind(t *testing.T) {
	home := setupHome(t, map[string]string{"sales.csv": salesCSV})

	_, err := runCmd(t, "profile", filepath.Join(home, "missing.csv"))
	require.Error(t, err)
	assert.Equal(t, dataset.KindNotFound, dataset.KindOf(err))
	assert.Contains(t, describeError(err), "not_found: ")

	_, err = runCmd(t, "pivot", filepath.Join(home, "sales.csv"), "--index", "region")
	require.Error(t, err)
	assert.Equal(t, dataset.KindValidation, dataset.KindOf(err))

	_, err = runCmd(t, "--output", "x.csv", "profile", filepath.Join(home, "sales.csv"))
	assert.Error(t, err, "profile has no --output flag")

	_, err = runCmd(t, "--format", "xml", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_format")
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	setupHome(t, nil)
	_, err := runCmd(t, "config", "set", "output_format", "json")
	require.NoError(t, err)
	_, err = runCmd(t, "config", "set", "bogus", "1")
	assert.Error(t, err)

	out, err := runCmd(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "output_format: json")

	// the saved format now applies to operations
	out, err = runCmd(t, "list")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)), out)
}

func TestCLI_SheetsListsWorkbookSheets(t *testing.T) {
	home := setupHome(t, nil)
	book := filepath.Join(home, "book.xlsx")
	f, err := os.Create(book)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("xl/workbook.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<workbook><sheets><sheet name="Q1" sheetId="1"/><sheet name="Q2" sheetId="2"/></sheets></workbook>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out, err := runCmd(t, "sheets", book)
	require.NoError(t, err)
	assert.Equal(t, "1. Q1\n2. Q2\n", out)

	_, err = runCmd(t, "sheets", filepath.Join(home, "missing.xlsx"))
	assert.Equal(t, dataset.KindNotFound, dataset.KindOf(err))
}

func TestParseAggSpecs(t *testing.T) {
	got, err := parseAggSpecs([]string{"sales:sum", "price = mean", "a:b:max"})
	require.NoError(t, err)
	assert.Equal(t, analysis.Aggregations{
		{Column: "sales", Function: "sum"},
		{Column: "price", Function: "mean"},
		{Column: "a:b", Function: "max"},
	}, got)

	for _, bad := range []string{"sales", ":sum", "sales:"} {
		_, err := parseAggSpecs([]string{bad})
		assert.Error(t, err, bad)
	}
}

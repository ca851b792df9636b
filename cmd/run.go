package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dfops/internal/dataset"
	"github.com/KaramelBytes/dfops/internal/engine"
	"github.com/KaramelBytes/dfops/internal/utils"
)

// newEngine builds an engine from the loaded config. CLI file arguments
// are paths relative to the working directory.
func newEngine(res engine.Resolver) (*engine.Engine, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	opt, err := loadOptions(c)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Options{
		Resolver:          res,
		Load:              opt,
		SampleLimit:       c.CompareSampleLimit,
		AnomalyMultiplier: c.AnomalyMultiplier,
		CacheEnabled:      c.CacheEnabled,
		CacheMaxCost:      c.CacheMaxCost,
	})
}

// runOperation executes op with params and prints the response in the
// configured format. A non-empty output writes the result table as CSV.
func runOperation(cmd *cobra.Command, op string, params any, output string) error {
	e, err := newEngine(engine.PathResolver{})
	if err != nil {
		return err
	}
	defer e.Close()

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	resp, err := e.Execute(cmd.Context(), engine.Request{Operation: op, Params: raw})
	if err != nil {
		return err
	}
	if output != "" {
		if err := writeTable(resp, output); err != nil {
			return err
		}
	}
	if err := render(cmd.OutOrStdout(), resp, cfg.OutputFormat); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", output)
	}
	return nil
}

func render(w io.Writer, resp *engine.Response, format string) error {
	var (
		b   []byte
		err error
	)
	switch strings.ToLower(format) {
	case "json":
		b, err = utils.PrettyJSON(resp)
	case "yaml":
		b, err = utils.PrettyYAML(resp)
	default:
		b = []byte(resp.Markdown())
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	if !bytes.HasSuffix(b, []byte("\n")) {
		b = append(b, '\n')
	}
	_, err = w.Write(b)
	return err
}

func writeTable(resp *engine.Response, path string) error {
	d := resp.Dataset()
	if d == nil {
		return dataset.Invalid("--output is only supported for table results (merge, aggregate, pivot)")
	}
	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, d); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

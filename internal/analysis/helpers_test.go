package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dfops/internal/dataset"
)

// csvData parses lines (header first) into a Dataset named name.
func csvData(t *testing.T, name string, lines ...string) *dataset.Dataset {
	t.Helper()
	d, err := dataset.Read(name, strings.NewReader(strings.Join(lines, "\n")+"\n"), dataset.DefaultLoadOptions())
	require.NoError(t, err)
	return d
}

// column returns the values of name as JSON primitives.
func column(t *testing.T, d *dataset.Dataset, name string) []any {
	t.Helper()
	c, ok := d.Column(name)
	require.True(t, ok, "column %q missing, have %v", name, d.Schema().Names())
	out := make([]any, c.Len())
	for i := range out {
		out[i] = c.Value(i).Interface()
	}
	return out
}

func ptr(v float64) *float64 { return &v }

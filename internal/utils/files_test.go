package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSafeWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.csv")
	require.NoError(t, SafeWriteFile(path, []byte("a\n1\n")))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(b))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, SafeWriteFile(path, []byte("b\n")))
	b, _ = os.ReadFile(path)
	assert.Equal(t, "b\n", string(b))
}

func TestPrettyYAMLKeepsJSONNamesAndOrder(t *testing.T) {
	v := struct {
		Zeta  string   `json:"zeta"`
		Alpha *float64 `json:"alpha"`
		Items []int    `json:"items"`
		Code  string   `json:"code"`
	}{Zeta: "z", Items: []int{1, 2}, Code: "007"}
	out, err := PrettyYAML(v)
	require.NoError(t, err)
	s := string(out)
	assert.Less(t, strings.Index(s, "zeta:"), strings.Index(s, "alpha:"))
	assert.Contains(t, s, "alpha: null")
	assert.Contains(t, s, "- 1")

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, "007", back["code"], "numeric-looking strings stay strings")
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ".", c.DataDir)
	assert.Equal(t, "markdown", c.OutputFormat)
	assert.Equal(t, 100, c.CompareSampleLimit)
	assert.Equal(t, 1.5, c.AnomalyMultiplier)
	assert.True(t, c.CacheEnabled)
	assert.Equal(t, ":8651", c.ServerAddr)
	assert.Equal(t, 60, c.RequestTimeoutSec)
	assert.Equal(t, 200, c.MaxUploadMB)
}

func TestLoadFileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, ".dfops", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /srv/data\nserver_addr: \":9000\"\ncompare_sample_limit: 5\n"), 0o644))
	t.Setenv("DFOPS_SERVER_ADDR", ":9100")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/data", c.DataDir)
	assert.Equal(t, 5, c.CompareSampleLimit)
	assert.Equal(t, ":9100", c.ServerAddr, "env wins over file")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DFOPS_OUTPUT_FORMAT", "xml")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_format")
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: [unterminated\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSetAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	c, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, c.Set("delimiter", "semicolon"))
	require.NoError(t, c.Set("cache_enabled", "false"))
	require.NoError(t, c.Set("null_values", "NA, n/a"))
	require.NoError(t, c.Set("anomaly_multiplier", "3"))
	assert.Error(t, c.Set("anomaly_multiplier", "-1"))
	assert.Error(t, c.Set("delimiter", "ab"))
	assert.Error(t, c.Set("bogus", "1"))
	assert.Equal(t, "semicolon", c.Delimiter, "failed Set leaves config unchanged")
	require.NoError(t, Save(c, path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "semicolon", again.Delimiter)
	assert.False(t, again.CacheEnabled)
	assert.Equal(t, []string{"NA", "n/a"}, again.NullValues)
	assert.Equal(t, 3.0, again.AnomalyMultiplier)
}

func TestParseRune(t *testing.T) {
	cases := map[string]rune{"": 0, "tab": '\t', `\t`: '\t', ";": ';', "comma": ',', "pipe": '|'}
	for in, want := range cases {
		got, err := ParseRune("delimiter", in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseRune("delimiter", ",,")
	assert.Error(t, err)
}

package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "text", c.Log.Format)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, 32<<20, c.Server.BodyLimit)
	assert.Equal(t, 4, c.Pipeline.Workers)
	assert.Equal(t, 2*time.Minute, c.Pipeline.Timeout)
	assert.Equal(t, 500*time.Millisecond, c.Inbox.Debounce)
	assert.Equal(t, writer.FormatCSV, c.OutputFormat())
	assert.True(t, c.Output.Header)
}

func TestParseFile(t *testing.T) {
	c, err := Parse(strings.NewReader(`
[log]
level = "debug"
format = "json"

[pipeline]
workers = 2
timeout = "30s"

[inbox]
dir = "/srv/inbox"
sweep = "*/10 * * * *"

[output]
format = "xlsx"
header = false

[banks.credentials]
"Metro Bank" = ["s3cret", "older"]
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 30*time.Second, c.Pipeline.Timeout)
	assert.Equal(t, "/srv/inbox", c.Inbox.Dir)
	assert.Equal(t, writer.FormatXLSX, c.OutputFormat())
	assert.False(t, c.Output.Header)

	creds := c.Banks.Credentials["metro bank"]
	require.Len(t, creds, 2)
	assert.Equal(t, "s3cret", creds[0].Reveal())
	assert.NotContains(t, fmt.Sprintf("%v", c), "s3cret")
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"level", "[log]\nlevel = \"loud\"", "log.level"},
		{"log format", "[log]\nformat = \"xml\"", "log.format"},
		{"output format", "[output]\nformat = \"pdf\"", "output.format"},
		{"workers", "[pipeline]\nworkers = 0", "pipeline.workers"},
		{"credentials", "[banks.credentials]\nacme = [\"hunter2\", 7]", "banks.credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.toml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NotContains(t, err.Error(), "hunter2")
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \":9000\"\n"), 0o644))

	t.Setenv("STATEMENTS_CONFIG", path)
	t.Setenv("STATEMENTS_PIPELINE_WORKERS", "8")
	t.Chdir(dir)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Server.Addr)
	assert.Equal(t, 8, c.Pipeline.Workers)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	c, err := Parse(strings.NewReader("[banks.credentials]\nhdfc = [\"s3cret\"]\n"))
	require.NoError(t, err)

	r, err := c.Registry()
	require.NoError(t, err)
	p, ok := r.Lookup("HDFC")
	require.True(t, ok)
	require.NotEmpty(t, p.Credentials)
	assert.Equal(t, "s3cret", p.Credentials[len(p.Credentials)-1].Reveal())

	c.Banks.Credentials = map[string][]models.Credential{"nobody": models.NewCredentials("x")}
	_, err = c.Registry()
	assert.ErrorContains(t, err, "nobody")
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	c := Config{Log: LogConfig{Level: "warn", Format: "json"}}
	logger := c.Logger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.Any("password", models.NewCredential("s3cret")))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.NotContains(t, out, "s3cret")
}

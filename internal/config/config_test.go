package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
collections:
  - name: science-fiction
    backend: calibre
    tag: "Science Fiction"
  - name: papers
    backend: zotero
    id: ABCD1234
    description: "Papers **worth** reading."

backends:
  calibre:
    library_path: /srv/calibre
  zotero:
    library_id: "12345"
    api_key: ${SHELFSYNC_TEST_ZOTERO_KEY}

mail:
  host: smtp.example.com
  username: sync@example.com
  password: hunter2
  recipients:
    - reader@example.com

output:
  repository: /srv/site
  committer:
    name: Shelf Sync
    email: sync@example.com
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadValid(t *testing.T) {
	t.Setenv("SHELFSYNC_TEST_ZOTERO_KEY", "zk-secret")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Collections, 2)
	assert.Equal(t, "Science Fiction", cfg.Collections[0].Tag)
	assert.Equal(t, "ABCD1234", cfg.Collections[1].ID)
	assert.Equal(t, "zk-secret", cfg.Backends.Zotero.APIKey, "environment references are expanded")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 465, cfg.Mail.Port)
	assert.Equal(t, "sent.log", cfg.Output.SentLog)
	assert.Equal(t, "origin", cfg.Output.Remote)
	assert.Equal(t, "user", cfg.Backends.Zotero.LibraryType)
	assert.Equal(t, "https://api.zotero.org", cfg.Backends.Zotero.BaseURL)
	assert.Equal(t, "0 6 * * *", cfg.Schedules.Build)
	assert.Equal(t, "0 8 * * 1", cfg.Schedules.Notify)
	assert.Equal(t, ":9187", cfg.Metrics.Listen)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"no collections", func(c *Config) { c.Collections = nil }, "no collections"},
		{"duplicate name", func(c *Config) { c.Collections[1].Name = c.Collections[0].Name }, "duplicate"},
		{"calibre without tag", func(c *Config) { c.Collections[0].Tag = "" }, "selected by tag"},
		{"zotero without id", func(c *Config) { c.Collections[1].ID = "" }, "selected by id"},
		{"id and tag together", func(c *Config) { c.Collections[0].ID = "X" }, "mutually exclusive"},
		{"unknown backend", func(c *Config) { c.Collections[0].Backend = "audible" }, "unknown backend"},
		{"missing committer", func(c *Config) { c.Output.Committer.Email = "" }, "committer"},
		{"calibre without path", func(c *Config) { c.Backends.Calibre.LibraryPath = "" }, "library_path"},
		{"both storage backends", func(c *Config) {
			c.Storage.GDrive = &GDriveConfig{Credentials: "x"}
			c.Storage.Local = &LocalConfig{Path: "/mnt/share"}
		}, "mutually exclusive"},
		{"local storage without path", func(c *Config) { c.Storage.Local = &LocalConfig{} }, "path is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validYAML))
			require.NoError(t, err)

			tc.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	p := cfg.Retry.Policy()
	assert.NoError(t, p.Validate())
	assert.Equal(t, 2, p.MaxRetries, "unset retry config falls back to the default policy")
}

func TestInitWritesExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, Init(path, false))
	assert.FileExists(t, path)

	// Refuses to clobber without force.
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))
}

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME, the user config and the working directory at temp
// dirs so that no real configuration or logs are touched.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("ARCHIVIST_DATA_DIR", "")
	t.Setenv("ARCHIVIST_EMBEDDINGS_PROVIDER", "")
	work := t.TempDir()
	t.Chdir(work)
	return work
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	isolate(t)

	// When: executing with --help
	out, err := execute(t, "--help")

	// Then: usage lists the commands
	require.NoError(t, err)
	for _, name := range []string{"build", "search", "timeline", "trend", "source", "entity", "daily", "stats", "serve", "config", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCmd_HasPersistentFlags(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"debug", "data-dir", "format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	isolate(t)

	_, err := execute(t, "reindex")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRootCmd_InvalidFormat(t *testing.T) {
	isolate(t)

	_, err := execute(t, "stats", "--format", "yaml", "--data-dir", t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestVersionCmd(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"full", []string{"version"}, "archivist dev"},
		{"short", []string{"version", "--short"}, "dev"},
		{"json", []string{"version", "--json"}, `"go_version"`},
		{"flag", []string{"--version"}, "archivist version dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, strings.TrimSpace(out), tt.want)
		})
	}
}

package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunClosesStoreWhenCommandFails(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", filepath.Join(t.TempDir(), "skynow.db"))

	err := run([]string{"history", "Paris", "--date", "10-03-2025"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --date")

	require.NotNil(t, app)
	assert.True(t, app.closed)
}

func TestRunReportsConfigErrors(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")

	err := run([]string{"current", "Paris"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DBDriver")
	assert.Nil(t, app)
}

func TestPrintJSON(t *testing.T) {
	cmd := askCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, printJSON(cmd, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", out.String())
}

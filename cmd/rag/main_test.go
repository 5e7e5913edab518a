package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rolerag/internal/config"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestRolesCommand(t *testing.T) {
	out := execute(t, "roles")
	assert.Contains(t, out, "finance")
	assert.Contains(t, out, "Finance_Team, God_Tier_Admins")
}

func TestExtractThenQuery(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv(config.DataDirEnv, dataDir)
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "finance"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "finance", "q1.md"),
		[]byte("# Q1 Results\nQ1 financial results were strong\n"), 0o644))

	out := execute(t, "extract")
	assert.Contains(t, out, "Wrote 1 chunk files")

	out = execute(t, "query", "--role", "Finance_Team", "--json", "financial", "results")
	var resp struct {
		Answer  string   `json:"answer"`
		Sources []string `json:"sources"`
		Kind    string   `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"q1.json"}, resp.Sources)
	assert.Equal(t, "fallback", resp.Kind)
	assert.Contains(t, resp.Answer, "Q1 financial results were strong")
}

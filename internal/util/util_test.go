package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, text string, data any) string {
	t.Helper()
	tmpl, err := ParseTemplate(text)
	require.NoError(t, err)
	out, err := ExecuteTemplate(tmpl, data)
	require.NoError(t, err)
	return out
}

func TestTemplate(t *testing.T) {
	out := render(t, "{{.Input}}\n\nMEMORY:\n{{.Memory}}", map[string]any{
		"Input":  "a < b & \"c\"",
		"Memory": "",
	})
	assert.Equal(t, "a < b & \"c\"\n\nMEMORY:\n", out)

	assert.Equal(t, "plain text", render(t, "plain text", nil))
	assert.Equal(t, "HQ none", render(t, `{{upper .Name}} {{default "none" .Missing}}`, map[string]any{"Name": "hq"}))

	_, err := ParseTemplate("{{.Input")
	assert.Error(t, err)

	tmpl, err := ParseTemplate("{{.Input.Nested}}")
	require.NoError(t, err)
	_, err = ExecuteTemplate(tmpl, map[string]string{"Input": "flat"})
	assert.Error(t, err)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	assert.Error(t, WriteFileAtomic(filepath.Join(dir, "missing", "x"), []byte("x"), 0o644))
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("meta_planner"))
	assert.True(t, ValidName("llm.txt"))
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.False(t, ValidName(bad), bad)
	}
}

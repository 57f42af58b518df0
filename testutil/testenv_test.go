package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("VERBI_TESTUTIL_SET", "from-env")
	t.Setenv("VERBI_TESTUTIL_NEW", "")
	require.NoError(t, os.Unsetenv("VERBI_TESTUTIL_NEW"))

	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte(`# comment
VERBI_TESTUTIL_SET=from-file
VERBI_TESTUTIL_NEW="quoted"
`), 0o600))

	LoadDotEnv(p)
	LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "from-env", os.Getenv("VERBI_TESTUTIL_SET"))
	assert.Equal(t, "quoted", os.Getenv("VERBI_TESTUTIL_NEW"))
}

func TestFindModuleRoot(t *testing.T) {
	root := FindModuleRoot("")
	require.NotEmpty(t, root)

	_, err := os.Stat(filepath.Join(root, "go.mod"))
	assert.NoError(t, err)
}

func TestMinimalPDF(t *testing.T) {
	pdf := MinimalPDF("hello")

	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-1.4\n")))
	assert.True(t, bytes.HasSuffix(pdf, []byte("%%EOF\n")))
	assert.Contains(t, string(pdf), "(hello) Tj")
}

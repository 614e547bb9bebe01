package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pessoas.csv")
	require.NoError(t, os.WriteFile(path, []byte("nome,idade\nAna,30\nBruno,\nAna,30\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"describe", path})
	require.NoError(t, rootCmd.Execute())

	s := out.String()
	assert.Contains(t, s, "pessoas.csv (3 rows x 2 columns)")
	assert.Contains(t, s, "Dimensões: (3, 2)")
	assert.Contains(t, s, "Linhas duplicadas: 1")
	assert.Contains(t, s, "idade    1")
}

func TestAskFailsFastWithoutAPIKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "x.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n"), 0o600))

	rootCmd.SetArgs([]string{"ask", path, "qual a média?"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GROQ_API_KEY")
}

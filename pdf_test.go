package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGeneratePDF(t *testing.T) {
	records := []FileRecord{
		{RelPath: "main.py", Content: "def main():\n\tprint('héllo')\n", Status: StatusIncluded},
		{RelPath: "notes.txt", Content: "plain notes\n", Status: StatusIncluded},
		skipped("secret.py", "possible secret: sk_/pk_ key"),
	}
	manifest := printTree(buildTree(records, "proj"))
	md := computeMetadata(aggregate(records), records, nil)
	out := filepath.Join(t.TempDir(), "bundle.pdf")

	require.NoError(t, generatePDF(records, manifest, md, out, zaptest.NewLogger(t)))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, len(data) > 0)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestGeneratePDFBadPath(t *testing.T) {
	records := []FileRecord{{RelPath: "a.txt", Content: "a", Status: StatusIncluded}}
	out := filepath.Join(t.TempDir(), "missing-dir", "x.pdf")
	err := generatePDF(records, "", OutputMetadata{}, out, zaptest.NewLogger(t))
	assert.Error(t, err)
}

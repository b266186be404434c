package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// writeTree creates files (slash paths relative to root) with the given content.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func baseOptions(root string) walkOptions {
	return walkOptions{
		Root:        root,
		Include:     defaultIncludes,
		Exclude:     defaultExcludes,
		StopMarkers: defaultMarkers,
	}
}

func relPaths(records []FileRecord) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.RelPath)
	}
	return out
}

func findRecord(t *testing.T, records []FileRecord, rel string) FileRecord {
	t.Helper()
	for _, r := range records {
		if r.RelPath == rel {
			return r
		}
	}
	t.Fatalf("no record for %s in %v", rel, relPaths(records))
	return FileRecord{}
}

func TestCollectFilesOrderFilesBeforeSubdirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.py":          "b = 1\n",
		"a.txt":         "alpha\n",
		"sub/c.py":      "c = 3\n",
		"sub/deep/d.md": "# d\n",
		"zz.js":         "let z;\n",
		"image.png":     "not matched",
	})

	records, err := collectFiles(baseOptions(root), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.py", "zz.js", "sub/c.py", "sub/deep/d.md"}, relPaths(records))
	for _, r := range records {
		assert.True(t, r.Included(), r.RelPath)
	}
	assert.Equal(t, "b = 1\n", findRecord(t, records, "b.py").Content)
}

func TestCollectFilesStopMarker(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app.py":              "x = 1\n",
		"venv/pyvenv.cfg":     "home = /usr\n",
		"venv/activate.py":    "y = 2\n",
		"venv/lib/site.py":    "z = 3\n",
		"other/pyvenv.cfg.md": "not a marker\n",
	})

	records, err := collectFiles(baseOptions(root), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py", "other/pyvenv.cfg.md"}, relPaths(records))
}

func TestCollectFilesMarkerAtRoot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pyvenv.cfg": "",
		"app.py":     "x = 1\n",
	})

	records, err := collectFiles(baseOptions(root), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCollectFilesExcludeAndEmpty(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.py":   "x = 1\n",
		"tmp_x.py":  "x = 2\n",
		"blank.txt": "  \n\t\n",
		"zero.md":   "",
	})

	opts := baseOptions(root)
	opts.IgnoreEmpty = true
	records, err := collectFiles(opts, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, findRecord(t, records, "keep.py").Included())

	tmp := findRecord(t, records, "tmp_x.py")
	assert.False(t, tmp.Included())
	assert.Equal(t, "matched exclude pattern *tmp*", tmp.SkipReason)

	assert.Equal(t, "empty", findRecord(t, records, "blank.txt").SkipReason)
	assert.Equal(t, "empty", findRecord(t, records, "zero.md").SkipReason)
}

func TestCollectFilesKeepsEmptyByDefault(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"zero.md": ""})

	records, err := collectFiles(baseOptions(root), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Included())
}

func TestCollectFilesSecrets(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"config.py": "STRIPE = 'sk_live_abcdef'\n",
		"clean.py":  "x = 1\n",
	})

	records, err := collectFiles(baseOptions(root), zaptest.NewLogger(t))
	require.NoError(t, err)
	cfg := findRecord(t, records, "config.py")
	assert.False(t, cfg.Included())
	assert.Equal(t, "possible secret: sk_/pk_ key", cfg.SkipReason)
	assert.Empty(t, cfg.Content)

	opts := baseOptions(root)
	opts.ForceInclude = true
	records, err = collectFiles(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	cfg = findRecord(t, records, "config.py")
	assert.True(t, cfg.Included())
	assert.True(t, cfg.Flagged)
	assert.False(t, findRecord(t, records, "clean.py").Flagged)
}

func TestCollectFilesInvalidUTF8AndNewlines(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"latin1.txt": "caf\xe9\n",
		"crlf.txt":   "one\r\ntwo\rthree\n",
	})

	records, err := collectFiles(baseOptions(root), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "not valid UTF-8", findRecord(t, records, "latin1.txt").SkipReason)
	assert.Equal(t, "one\ntwo\nthree\n", findRecord(t, records, "crlf.txt").Content)
}

func TestCollectFilesMaxSize(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"small.txt": "ok",
		"big.txt":   strings.Repeat("x ", 100),
	})

	opts := baseOptions(root)
	opts.MaxSize = 10
	records, err := collectFiles(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, findRecord(t, records, "small.txt").Included())
	assert.Equal(t, "exceeds max size (200 bytes)", findRecord(t, records, "big.txt").SkipReason)
}

func TestCollectFilesIgnoreFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":            "ignored.py\nbuild/\n",
		"ignored.py":            "x = 1\n",
		"keep.py":               "y = 2\n",
		"build/out.py":          "z = 3\n",
		"pkg/.promptifyignore":  "generated_*.py\n",
		"pkg/generated_api.py":  "g = 1\n",
		"pkg/handwritten.py":    "h = 1\n",
		"other/generated_ok.py": "o = 1\n",
	})

	// .gitignore is opt-in, .promptifyignore is always honored.
	records, err := collectFiles(baseOptions(root), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, findRecord(t, records, "ignored.py").Included())
	assert.True(t, findRecord(t, records, "build/out.py").Included())
	assert.Equal(t, "ignored by pkg/.promptifyignore", findRecord(t, records, "pkg/generated_api.py").SkipReason)
	assert.True(t, findRecord(t, records, "pkg/handwritten.py").Included())
	assert.True(t, findRecord(t, records, "other/generated_ok.py").Included())

	opts := baseOptions(root)
	opts.UseGitignore = true
	records, err = collectFiles(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "ignored by .gitignore", findRecord(t, records, "ignored.py").SkipReason)
	assert.True(t, findRecord(t, records, "keep.py").Included())
	assert.NotContains(t, relPaths(records), "build/out.py")
}

func TestCollectFilesSymlinkedDirNotDescended(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeTree(t, root, map[string]string{"app.py": "x = 1\n"})
	writeTree(t, outside, map[string]string{"lib.py": "y = 2\n"})
	if err := os.Symlink(outside, filepath.Join(root, "linked")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "lib.py"), filepath.Join(root, "alias.py")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	records, err := collectFiles(baseOptions(root), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"alias.py", "app.py"}, relPaths(records))
	assert.Equal(t, "y = 2\n", findRecord(t, records, "alias.py").Content)
}

func TestCollectFilesErrors(t *testing.T) {
	_, err := collectFiles(walkOptions{Root: filepath.Join(t.TempDir(), "missing")}, nil)
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = collectFiles(walkOptions{Root: file}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestCollectFilesPatternWithSpace(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"My Notes.md":       "notes\n",
		"docs/My Dir/a.txt": "a\n",
		"Notes.md":          "other\n",
	})

	opts := baseOptions(root)
	opts.Include = []string{"My Notes.md", "docs/My Dir/*"}
	records, err := collectFiles(opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"My Notes.md", "docs/My Dir/a.txt"}, relPaths(records))
}

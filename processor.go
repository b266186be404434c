package main

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	gitignore "github.com/monochromegane/go-gitignore"
	"go.uber.org/zap"
)

const promptifyIgnoreFile = ".promptifyignore"

// walkOptions is the filter configuration for one run.
type walkOptions struct {
	Root         string
	Include      []string
	Exclude      []string
	StopMarkers  []string
	IgnoreEmpty  bool
	ForceInclude bool
	UseGitignore bool
	TrackedOnly  bool
	MaxSize      int64 // 0 for no limit
}

// ignoreRule is a compiled ignore file scoped to the directory holding it.
type ignoreRule struct {
	source  string // Relative path of the ignore file, for skip reasons
	matcher gitignore.IgnoreMatcher
}

type walker struct {
	opts    walkOptions
	root    string
	filter  *filter
	tracked map[string]bool
	markers map[string]bool
	logger  *zap.Logger
	records []FileRecord
}

// collectFiles walks opts.Root and returns a record for every file that
// matched an include pattern, in walk order.
func collectFiles(opts walkOptions, logger *zap.Logger) ([]FileRecord, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("error resolving root %s: %w", opts.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", opts.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", opts.Root)
	}

	f, err := newFilter(opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}

	w := &walker{
		opts:    opts,
		root:    root,
		filter:  f,
		markers: make(map[string]bool, len(opts.StopMarkers)),
		logger:  logger,
	}
	for _, m := range opts.StopMarkers {
		w.markers[m] = true
	}

	if opts.TrackedOnly {
		w.tracked, err = trackedFiles(root)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded git index", zap.Int("trackedFiles", len(w.tracked)))
	}

	w.walkDir(root, "", nil)
	return w.records, nil
}

// walkDir visits a directory's files in lexical order before descending into
// its subdirectories. A directory holding a stop marker contributes nothing.
func (w *walker) walkDir(absDir, relDir string, rules []ignoreRule) {
	entries, err := os.ReadDir(absDir)
	if err != nil {
		w.logger.Warn("Error reading directory", zap.String("path", absDir), zap.Error(err))
		return
	}

	for _, e := range entries {
		if !e.IsDir() && w.markers[e.Name()] {
			w.logger.Debug("Stop marker found, skipping subtree",
				zap.String("dir", displayDir(relDir)), zap.String("marker", e.Name()))
			return
		}
	}

	rules = w.loadIgnoreRules(absDir, relDir, rules)

	var subdirs []string
	for _, e := range entries {
		absPath := filepath.Join(absDir, e.Name())
		relPath := path.Join(relDir, e.Name())

		if e.IsDir() {
			subdirs = append(subdirs, e.Name())
			continue
		}

		info, err := os.Stat(absPath) // follows symlinks
		if err != nil {
			w.logger.Warn("Error accessing path", zap.String("path", relPath), zap.Error(err))
			continue
		}
		if info.IsDir() {
			// Symlinked directories are listed but never descended.
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		w.visitFile(absPath, relPath, info, rules)
	}

	for _, name := range subdirs {
		absPath := filepath.Join(absDir, name)
		relPath := path.Join(relDir, name)
		if src, ok := ignoredBy(rules, absPath, true); ok {
			w.logger.Debug("Skipping ignored directory", zap.String("dir", relPath), zap.String("source", src))
			continue
		}
		w.walkDir(absPath, relPath, rules)
	}
}

// visitFile applies the filter chain to one file and appends its record.
func (w *walker) visitFile(absPath, relPath string, info fs.FileInfo, rules []ignoreRule) {
	if !w.filter.candidate(relPath) {
		return
	}

	if p, ok := w.filter.excludedBy(relPath); ok {
		w.skip(relPath, fmt.Sprintf("matched exclude pattern %s", p))
		return
	}
	if src, ok := ignoredBy(rules, absPath, false); ok {
		w.skip(relPath, "ignored by "+src)
		return
	}
	if w.tracked != nil && !w.tracked[relPath] {
		w.skip(relPath, "not tracked by git")
		return
	}
	if w.opts.MaxSize > 0 && info.Size() > w.opts.MaxSize {
		w.skip(relPath, fmt.Sprintf("exceeds max size (%d bytes)", info.Size()))
		return
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		w.logger.Warn("Could not read file", zap.String("path", relPath), zap.Error(err))
		w.skip(relPath, "unreadable")
		return
	}
	if !utf8.Valid(raw) {
		w.logger.Warn("Unable to read file as UTF-8, skipping", zap.String("path", relPath))
		w.skip(relPath, "not valid UTF-8")
		return
	}
	content := normalizeNewlines(string(raw))

	if w.opts.IgnoreEmpty && strings.TrimSpace(content) == "" {
		w.skip(relPath, "empty")
		return
	}

	rec := FileRecord{RelPath: relPath, Content: content, Status: StatusIncluded}
	if hit, found := scanSecrets(content); found {
		if !w.opts.ForceInclude {
			w.logger.Warn("Possible secret detected, skipping file",
				zap.String("path", relPath), zap.String("kind", hit.Kind), zap.String("token", hit.Redacted()))
			w.skip(relPath, "possible secret: "+hit.Kind)
			return
		}
		w.logger.Warn("Possible secret detected, including anyway (force-include)",
			zap.String("path", relPath), zap.String("kind", hit.Kind), zap.String("token", hit.Redacted()))
		rec.Flagged = true
	}

	w.logger.Debug("Including file", zap.String("path", relPath), zap.Int("bytes", len(content)))
	w.records = append(w.records, rec)
}

func (w *walker) skip(relPath, reason string) {
	w.logger.Debug("Skipping file", zap.String("path", relPath), zap.String("reason", reason))
	w.records = append(w.records, skipped(relPath, reason))
}

// loadIgnoreRules appends the ignore files found in absDir to the inherited
// rules. The returned slice never aliases the parent's backing array.
func (w *walker) loadIgnoreRules(absDir, relDir string, inherited []ignoreRule) []ignoreRule {
	names := []string{promptifyIgnoreFile}
	if w.opts.UseGitignore {
		names = append([]string{".gitignore"}, names...)
	}

	rules := inherited[:len(inherited):len(inherited)]
	for _, name := range names {
		p := filepath.Join(absDir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		matcher, err := gitignore.NewGitIgnore(p, absDir)
		if err != nil {
			w.logger.Warn("Could not parse ignore file", zap.String("path", p), zap.Error(err))
			continue
		}
		rules = append(rules, ignoreRule{source: path.Join(relDir, name), matcher: matcher})
	}
	return rules
}

// ignoredBy returns the source of the first rule ignoring absPath.
func ignoredBy(rules []ignoreRule, absPath string, isDir bool) (string, bool) {
	for _, r := range rules {
		if r.matcher.Match(absPath, isDir) {
			return r.source, true
		}
	}
	return "", false
}

// normalizeNewlines converts CRLF and lone CR line endings to LF.
func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func displayDir(relDir string) string {
	if relDir == "" {
		return "."
	}
	return relDir
}

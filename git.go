package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// trackedFiles opens the git repository enclosing root and returns the set of
// paths in its index, relative to root and slash-separated. Entries outside
// root are dropped. Only the local .git directory is read.
func trackedFiles(root string) (map[string]bool, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at '%s': %w", root, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	top := wt.Filesystem.Root()

	// Resolve both sides so a symlinked temp dir or home doesn't break Rel.
	if resolved, err := filepath.EvalSymlinks(top); err == nil {
		top = resolved
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	prefix, err := filepath.Rel(top, root)
	if err != nil {
		return nil, fmt.Errorf("failed to locate %s inside repository %s: %w", root, top, err)
	}
	prefix = filepath.ToSlash(prefix)
	if prefix == "." {
		prefix = ""
	} else {
		prefix += "/"
	}

	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("failed to read git index: %w", err)
	}

	tracked := make(map[string]bool, len(idx.Entries))
	for _, e := range idx.Entries {
		if !strings.HasPrefix(e.Name, prefix) {
			continue
		}
		tracked[strings.TrimPrefix(e.Name, prefix)] = true
	}
	return tracked, nil
}

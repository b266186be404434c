package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	fuzzyfinder "github.com/ktr0731/go-fuzzyfinder"
	"github.com/mattn/go-isatty"
)

// errSelectionAborted means the user closed the picker without confirming.
var errSelectionAborted = errors.New("interactive selection aborted")

// stdinIsTerminal and findMulti are swapped out in tests.
var stdinIsTerminal = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var findMulti = func(items []string, preview func(i int) string) ([]int, error) {
	return fuzzyfinder.FindMulti(
		items,
		func(i int) string { return items[i] },
		fuzzyfinder.WithHeader("Tab to toggle, Enter to confirm, Esc to abort"),
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return "Select the files to keep in the output."
			}
			return preview(i)
		}),
	)
}

// narrowInteractively lets the user pick which included files to keep.
// Files left unselected become skipped with reason "deselected".
func narrowInteractively(records []FileRecord) ([]FileRecord, error) {
	if !stdinIsTerminal() {
		return nil, errors.New("--interactive requires a terminal on stdin")
	}

	var paths []string
	var index []int
	for i, r := range records {
		if r.Included() {
			paths = append(paths, r.RelPath)
			index = append(index, i)
		}
	}
	if len(paths) == 0 {
		return records, nil
	}

	picked, err := findMulti(paths, func(i int) string {
		return previewRecord(records[index[i]])
	})
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return nil, errSelectionAborted
		}
		return nil, fmt.Errorf("fuzzy finder error: %w", err)
	}
	return applySelection(records, index, picked), nil
}

// applySelection marks every included record whose position in index was not
// picked as skipped. records is not modified.
func applySelection(records []FileRecord, index []int, picked []int) []FileRecord {
	keep := make(map[int]bool, len(picked))
	for _, p := range picked {
		keep[index[p]] = true
	}

	out := make([]FileRecord, len(records))
	copy(out, records)
	for _, i := range index {
		if !keep[i] {
			out[i] = skipped(out[i].RelPath, "deselected")
		}
	}
	return out
}

const previewLines = 40

func previewRecord(r FileRecord) string {
	lines := strings.SplitN(r.Content, "\n", previewLines+1)
	if len(lines) > previewLines {
		lines = append(lines[:previewLines], "...")
	}
	return fmt.Sprintf("%s (%d bytes)\n\n%s", r.RelPath, len(r.Content), strings.Join(lines, "\n"))
}

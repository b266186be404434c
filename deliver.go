package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"
)

// clipboardWriteAll is swapped out in tests.
var clipboardWriteAll = clipboard.WriteAll

const defaultOutputFile = "output.md"

// deliverOptions selects where the aggregate goes.
type deliverOptions struct {
	OutputFile  string // Fallback (or forced) file destination
	AlwaysWrite bool   // Write OutputFile even when the clipboard works
	Stdout      bool   // Print instead of copying to the clipboard
}

// deliver sends text to the clipboard, falling back to a file when the
// clipboard is unavailable. With Stdout set the text goes to out instead.
// Status messages are written to status.
func deliver(text string, opts deliverOptions, out, status io.Writer, logger *zap.Logger) error {
	outputFile := opts.OutputFile
	if outputFile == "" {
		outputFile = defaultOutputFile
	}

	if opts.AlwaysWrite {
		if err := atomicWrite(outputFile, []byte(text)); err != nil {
			return fmt.Errorf("error writing to file %s: %w", outputFile, err)
		}
		fmt.Fprintf(status, "Output written to %s\n", outputFile)
	}

	if opts.Stdout {
		fmt.Fprint(out, text)
		return nil
	}

	if err := clipboardWriteAll(text); err != nil {
		logger.Warn("Failed to copy contents to clipboard", zap.Error(err))
		if opts.AlwaysWrite {
			return nil
		}
		if werr := atomicWrite(outputFile, []byte(text)); werr != nil {
			return fmt.Errorf("clipboard unavailable (%v) and fallback write to %s failed: %w", err, outputFile, werr)
		}
		fmt.Fprintf(status, "Clipboard unavailable; output written to %s\n", outputFile)
		return nil
	}

	fmt.Fprintln(status, "Contents copied to clipboard")
	return nil
}

// atomicWrite writes data to path via a temp file in the same directory and
// a rename, so readers never observe a partial file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tempPath)
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

package main

import "strings"

// codeExtensions are the file suffixes whose content is wrapped in a code
// fence in the aggregate. Matching is a case-sensitive suffix test on the
// file name.
var codeExtensions = []string{
	".py", ".json", ".js", ".html", ".css", ".java",
	".cpp", ".c", ".h", ".yaml", ".yml",
}

// isCodeFile reports whether the named file gets fenced.
func isCodeFile(name string) bool {
	for _, ext := range codeExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

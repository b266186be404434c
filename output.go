package main

import (
	"path"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// aggregate concatenates the included records into the text blob. Each file
// contributes a header, its (optionally fenced) content and an empty element,
// and all elements are joined with newlines.
func aggregate(records []FileRecord) string {
	var parts []string
	for _, r := range records {
		if !r.Included() {
			continue
		}
		parts = append(parts, "---\nFile: `"+r.RelPath+"`\n")
		if isCodeFile(path.Base(r.RelPath)) {
			parts = append(parts, "```\n"+r.Content+"\n```")
		} else {
			parts = append(parts, r.Content)
		}
		parts = append(parts, "")
	}
	return strings.Join(parts, "\n")
}

// Node represents an entry in the manifest tree.
type Node struct {
	Name     string
	IsDir    bool
	Record   *FileRecord // nil for directories
	Children []*Node
}

// buildTree constructs a hierarchical tree from the records' relative paths,
// creating intermediate directory nodes as needed.
func buildTree(records []FileRecord, rootName string) *Node {
	root := &Node{Name: rootName, IsDir: true}
	dirs := map[string]*Node{"": root}

	for i := range records {
		rec := &records[i]
		parent := ensureDir(dirs, path.Dir(rec.RelPath))
		parent.Children = append(parent.Children, &Node{
			Name:   path.Base(rec.RelPath),
			Record: rec,
		})
	}

	sortChildren(root)
	return root
}

// ensureDir returns the node for dir, creating it and its ancestors.
func ensureDir(dirs map[string]*Node, dir string) *Node {
	if dir == "." || dir == "/" {
		dir = ""
	}
	if n, ok := dirs[dir]; ok {
		return n
	}
	parent := ensureDir(dirs, path.Dir(dir))
	n := &Node{Name: path.Base(dir), IsDir: true}
	parent.Children = append(parent.Children, n)
	dirs[dir] = n
	return n
}

// sortChildren recursively sorts directories before files, then by name.
func sortChildren(node *Node) {
	sort.SliceStable(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		return a.Name < b.Name
	})
	for _, child := range node.Children {
		if child.IsDir {
			sortChildren(child)
		}
	}
}

var (
	includedMark = color.New(color.FgGreen)
	skippedMark  = color.New(color.FgRed)
	reasonStyle  = color.New(color.FgHiBlack)
	dirStyle     = color.New(color.Bold)
)

// printTree renders the manifest. Colors follow color.NoColor.
func printTree(root *Node) string {
	var builder strings.Builder
	builder.WriteString(dirStyle.Sprint(root.Name + "/"))
	builder.WriteString("\n")
	printNode(&builder, root.Children, "")
	return builder.String()
}

func printNode(builder *strings.Builder, children []*Node, prefix string) {
	for i, node := range children {
		connector := "├── "
		newPrefix := prefix + "│   "
		if i == len(children)-1 {
			connector = "└── "
			newPrefix = prefix + "    "
		}

		builder.WriteString(prefix)
		builder.WriteString(connector)
		builder.WriteString(nodeLabel(node))
		builder.WriteString("\n")

		if node.IsDir && len(node.Children) > 0 {
			printNode(builder, node.Children, newPrefix)
		}
	}
}

func nodeLabel(node *Node) string {
	if node.IsDir {
		return dirStyle.Sprint(node.Name + "/")
	}
	rec := node.Record
	if rec.Included() {
		label := includedMark.Sprint("✓ " + node.Name)
		if rec.Flagged {
			label += reasonStyle.Sprint(" (possible secret, force-included)")
		}
		return label
	}
	return skippedMark.Sprint("✗ "+node.Name) + reasonStyle.Sprint(" ("+rec.SkipReason+")")
}

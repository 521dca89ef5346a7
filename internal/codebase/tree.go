package codebase

import (
	"fmt"
	"sort"
	"strings"
)

type treeNode struct {
	name     string
	children map[string]*treeNode
	isFile   bool
}

func (n *treeNode) child(name string, isFile bool) *treeNode {
	if n.children == nil {
		n.children = make(map[string]*treeNode)
	}
	c, ok := n.children[name]
	if !ok {
		c = &treeNode{name: name, isFile: isFile}
		n.children[name] = c
	}
	return c
}

// countFiles returns the number of files below n.
func (n *treeNode) countFiles() int {
	if n.isFile {
		return 1
	}
	total := 0
	for _, c := range n.children {
		total += c.countFiles()
	}
	return total
}

// Tree renders the directory structure up to maxDepth levels. Directories
// deeper than the limit are collapsed to a file count. maxDepth <= 0 means no limit.
func (s *Set) Tree(maxDepth int) string {
	root := &treeNode{}
	for _, f := range s.files {
		parts := strings.Split(f.Path, "/")
		node := root
		for i, part := range parts {
			node = node.child(part, i == len(parts)-1)
		}
	}

	var b strings.Builder
	renderTree(&b, root, 0, maxDepth)
	return strings.TrimRight(b.String(), "\n")
}

func renderTree(b *strings.Builder, node *treeNode, depth, maxDepth int) {
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	// Directories first, then files, each alphabetically
	sort.Slice(names, func(i, j int) bool {
		a, c := node.children[names[i]], node.children[names[j]]
		if a.isFile != c.isFile {
			return !a.isFile
		}
		return names[i] < names[j]
	})

	indent := strings.Repeat("  ", depth)
	for _, name := range names {
		c := node.children[name]
		if c.isFile {
			fmt.Fprintf(b, "%s%s\n", indent, name)
			continue
		}
		if maxDepth > 0 && depth+1 >= maxDepth {
			fmt.Fprintf(b, "%s%s/ ... (%d files)\n", indent, name, c.countFiles())
			continue
		}
		fmt.Fprintf(b, "%s%s/\n", indent, name)
		renderTree(b, c, depth+1, maxDepth)
	}
}

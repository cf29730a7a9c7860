// Package suppress contains the domain suppression index.
// This is part of the Functional Core - no I/O, only pure functions.
package suppress

import (
	"sort"
	"strings"
)

// node is one label position in the reversed-label trie.
// A leaf node excludes its own domain and every subdomain under it.
type node struct {
	children map[string]*node
	leaf     bool
}

// Trie is a reversed-label suffix trie of suppressed domain patterns.
// A Trie is never mutated after Build returns.
type Trie struct {
	root     *node
	patterns []string
}

// Build creates a trie from a whitespace-separated domain list.
// Empty tokens are ignored; every remaining token is inserted as a pattern.
func Build(domainList string) *Trie {
	t := &Trie{root: &node{}}
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(domainList) {
		t.insert(pattern)
		if !seen[pattern] {
			seen[pattern] = true
			t.patterns = append(t.patterns, pattern)
		}
	}
	sort.Strings(t.patterns)
	return t
}

func (t *Trie) insert(pattern string) {
	labels := strings.Split(pattern, ".")
	current := t.root
	for i := len(labels) - 1; i >= 0; i-- {
		if current.children == nil {
			current.children = make(map[string]*node)
		}
		child, ok := current.children[labels[i]]
		if !ok {
			child = &node{}
			current.children[labels[i]] = child
		}
		current = child
	}
	current.leaf = true
}

// IsExcluded reports whether hostname matches a suppressed pattern,
// either exactly or as a subdomain of one.
// A nil trie excludes nothing.
func (t *Trie) IsExcluded(hostname string) bool {
	if t == nil || t.root == nil {
		return false
	}
	labels := strings.Split(hostname, ".")
	current := t.root
	for i := len(labels) - 1; i >= 0; i-- {
		child, ok := current.children[labels[i]]
		if !ok {
			return false
		}
		if child.leaf {
			return true
		}
		current = child
	}
	return false
}

// Patterns returns the distinct inserted patterns in sorted order.
func (t *Trie) Patterns() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.patterns...)
}

// Len returns the number of distinct patterns.
func (t *Trie) Len() int {
	if t == nil {
		return 0
	}
	return len(t.patterns)
}

package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// ExtractVariables lists the distinct names a template references, either
// as a variable or as a block. For example,
// "{{#theme}}about {{theme}}{{/theme}} {{mood|happy}}" returns
// ["mood", "theme"].
func ExtractVariables(text string) []string {
	seen := make(map[string]bool)
	var vars []string

	var walk func(nodes []node)
	walk = func(nodes []node) {
		for _, n := range nodes {
			if n.kind == textNode {
				continue
			}
			if !seen[n.name] {
				seen[n.name] = true
				vars = append(vars, n.name)
			}
			walk(n.children)
		}
	}
	walk(Compile(text).nodes)

	// Sort for consistent ordering
	sort.Strings(vars)
	return vars
}

// HashText returns a SHA256 hash of the text for change detection.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

package prompts

import (
	"regexp"
	"strconv"
	"strings"
)

// Marker syntax:
//
//	{{name}}                variable, empty when absent or falsy
//	{{name|default}}        variable with an inline default
//	{{#name}}...{{/name}}   rendered only when name is truthy
//	{{^name}}...{{/name}}   rendered only when name is falsy or absent
//
// The template is parsed once into a node tree and rendered in a single
// walk, so substituted values are never re-scanned for markers.

var (
	markerPattern   = regexp.MustCompile(`(?s)\{\{.*?\}\}`)
	blankRunPattern = regexp.MustCompile(`\n{3,}`)
	namePattern     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)
)

// Vars is the flat render input. Values are scalars (string, bool, ints,
// floats) or nil; anything else is treated as absent.
type Vars map[string]any

type nodeKind int

const (
	textNode nodeKind = iota
	varNode
	blockNode
)

type node struct {
	kind       nodeKind
	text       string
	name       string
	def        string
	hasDefault bool
	inverted   bool
	children   []node
}

// Template is a compiled marker template. It is immutable and safe for
// concurrent use.
type Template struct {
	source string
	nodes  []node
}

// Source returns the template text the Template was compiled from.
func (t *Template) Source() string {
	return t.source
}

// Render is shorthand for Compile(template).Render(vars).
func Render(template string, vars Vars) string {
	return Compile(template).Render(vars)
}

// Compile parses template text. It never fails: markers that don't form a
// valid variable or a matched block are dropped.
func Compile(template string) *Template {
	type frame struct {
		name     string
		inverted bool
		nodes    []node
	}
	stack := []*frame{{}}
	top := func() *frame { return stack[len(stack)-1] }

	// unwind closes frames above index i, splicing their children into the
	// parent as if the opening marker had never been there.
	unwind := func(i int) {
		for len(stack)-1 > i {
			f := top()
			stack = stack[:len(stack)-1]
			top().nodes = append(top().nodes, f.nodes...)
		}
	}

	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			break
		}
		end += start + 2

		if start > 0 {
			top().nodes = append(top().nodes, node{kind: textNode, text: rest[:start]})
		}
		tag := rest[start+2 : end]
		rest = rest[end+2:]

		switch {
		case strings.HasPrefix(tag, "#"), strings.HasPrefix(tag, "^"):
			name := strings.TrimSpace(tag[1:])
			if !namePattern.MatchString(name) {
				continue
			}
			stack = append(stack, &frame{name: name, inverted: tag[0] == '^'})

		case strings.HasPrefix(tag, "/"):
			name := strings.TrimSpace(tag[1:])
			match := -1
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].name == name {
					match = i
					break
				}
			}
			if match < 0 {
				continue
			}
			unwind(match)
			f := top()
			stack = stack[:len(stack)-1]
			top().nodes = append(top().nodes, node{
				kind:     blockNode,
				name:     f.name,
				inverted: f.inverted,
				children: f.nodes,
			})

		default:
			name, def, hasDefault := strings.Cut(tag, "|")
			name = strings.TrimSpace(name)
			if !namePattern.MatchString(name) {
				continue
			}
			top().nodes = append(top().nodes, node{
				kind:       varNode,
				name:       name,
				def:        def,
				hasDefault: hasDefault,
			})
		}
	}
	if rest != "" {
		top().nodes = append(top().nodes, node{kind: textNode, text: rest})
	}
	unwind(0)

	return &Template{source: template, nodes: stack[0].nodes}
}

// Render evaluates the template against vars and applies the cleanup rule:
// leftover marker syntax is deleted, runs of blank lines collapse to one,
// and the result is trimmed. Spacing and punctuation inside lines are left
// exactly as rendered.
func (t *Template) Render(vars Vars) string {
	var b strings.Builder
	renderNodes(&b, t.nodes, vars)
	return Clean(b.String())
}

func renderNodes(b *strings.Builder, nodes []node, vars Vars) {
	for _, n := range nodes {
		switch n.kind {
		case textNode:
			b.WriteString(n.text)
		case varNode:
			if v, ok := vars[n.name]; ok && Truthy(v) {
				b.WriteString(formatValue(v))
			} else if n.hasDefault {
				b.WriteString(n.def)
			}
		case blockNode:
			if Truthy(vars[n.name]) != n.inverted {
				renderNodes(b, n.children, vars)
			}
		}
	}
}

// Clean applies the render cleanup rule to s on its own. A cleaned value
// substituted mid-line is left unchanged by Render's own cleanup.
func Clean(s string) string {
	for markerPattern.MatchString(s) {
		s = markerPattern.ReplaceAllString(s, "")
	}
	s = blankRunPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truthy reports whether a render value counts as present: a non-empty
// string, a non-zero number or true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case string:
		return t != ""
	case bool:
		return t
	case int:
		return t != 0
	case int8:
		return t != 0
	case int16:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case uint:
		return t != 0
	case uint8:
		return t != 0
	case uint16:
		return t != 0
	case uint32:
		return t != 0
	case uint64:
		return t != 0
	case float32:
		return t != 0
	case float64:
		return t != 0
	default:
		return false
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

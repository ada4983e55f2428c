// Package tmpl provides the two small template languages used in job spec files.
//
// Template ($name / ${name}) is used for sbatch headers, preambles and array
// footers. Substitution is safe: placeholders without a value are emitted
// exactly as written and surplus values are ignored, since these templates
// are user-authored and vary in which placeholders they use.
//
// BraceTemplate ({name}) is used for per-job run scripts and output path
// expressions. It is strict: every placeholder must resolve.
package tmpl

import (
	"strings"
)

type part interface {
	append(dst *strings.Builder, values map[string]string)
}

type literalPart string

type varPart struct {
	name string
	// raw is the placeholder exactly as written ("$name" or "${name}").
	raw string
}

func (p literalPart) append(dst *strings.Builder, _ map[string]string) {
	dst.WriteString(string(p))
}

func (p varPart) append(dst *strings.Builder, values map[string]string) {
	if v, ok := values[p.name]; ok {
		dst.WriteString(v)
		return
	}
	dst.WriteString(p.raw)
}

// Template is a compiled $-placeholder template.
type Template struct {
	parts []part
}

// Compile parses s. It never fails: malformed placeholders are literals.
func Compile(s string) *Template {
	var parts []part
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, literalPart(lit.String()))
			lit.Reset()
		}
	}

	for i := 0; i < len(s); {
		if s[i] != '$' {
			lit.WriteByte(s[i])
			i++
			continue
		}
		rest := s[i+1:]
		switch {
		case strings.HasPrefix(rest, "$"):
			lit.WriteByte('$')
			i += 2
		case strings.HasPrefix(rest, "{"):
			end := strings.IndexByte(rest, '}')
			if end > 1 && isIdentifier(rest[1:end]) {
				flush()
				parts = append(parts, varPart{name: rest[1:end], raw: s[i : i+end+2]})
				i += end + 2
				continue
			}
			lit.WriteByte('$')
			i++
		default:
			n := identifierLen(rest)
			if n == 0 {
				lit.WriteByte('$')
				i++
				continue
			}
			flush()
			parts = append(parts, varPart{name: rest[:n], raw: s[i : i+n+1]})
			i += n + 1
		}
	}
	flush()

	return &Template{parts: parts}
}

// Substitute is shorthand for Compile(s).Apply(values).
func Substitute(s string, values map[string]string) string {
	return Compile(s).Apply(values)
}

// Apply renders the template. Unresolved placeholders pass through verbatim.
func (t *Template) Apply(values map[string]string) string {
	var b strings.Builder
	for _, p := range t.parts {
		p.append(&b, values)
	}
	return b.String()
}

// Bind resolves the placeholders present in values and returns a new
// template in which the remaining placeholders are still open.
func (t *Template) Bind(values map[string]string) *Template {
	out := make([]part, 0, len(t.parts))
	for _, p := range t.parts {
		if v, ok := p.(varPart); ok {
			if val, found := values[v.name]; found {
				out = append(out, literalPart(val))
				continue
			}
		}
		out = append(out, p)
	}
	return &Template{parts: out}
}

// Placeholders lists the distinct placeholder names in order of first use.
func (t *Template) Placeholders() []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range t.parts {
		if v, ok := p.(varPart); ok && !seen[v.name] {
			seen[v.name] = true
			names = append(names, v.name)
		}
	}
	return names
}

func identifierLen(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case c >= '0' && c <= '9' && i > 0:
		default:
			return i
		}
	}
	return len(s)
}

func isIdentifier(s string) bool {
	return s != "" && identifierLen(s) == len(s)
}

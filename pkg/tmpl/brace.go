package tmpl

import (
	"fmt"
	"strings"
)

// MissingFieldError is returned when a brace placeholder has no value.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("template field {%s} was not provided", e.Field)
}

type bracePart struct {
	literal string
	field   string
}

// BraceTemplate is a compiled {name} template. "{{" and "}}" escape braces.
type BraceTemplate struct {
	parts []bracePart
}

// CompileBrace parses a {name} template.
func CompileBrace(template string) (*BraceTemplate, error) {
	var parts []bracePart
	var lit strings.Builder
	s := template
	for len(s) > 0 {
		switch {
		case strings.HasPrefix(s, "{{"):
			lit.WriteByte('{')
			s = s[2:]
		case strings.HasPrefix(s, "}}"):
			lit.WriteByte('}')
			s = s[2:]
		case s[0] == '}':
			return nil, fmt.Errorf("single '}' encountered in %q", template)
		case s[0] == '{':
			closeIdx := strings.IndexByte(s, '}')
			if closeIdx == -1 {
				return nil, fmt.Errorf("unclosed placeholder in %q", template)
			}
			field := strings.TrimSpace(s[1:closeIdx])
			if !isIdentifier(field) {
				return nil, fmt.Errorf("unsupported placeholder {%s}", s[1:closeIdx])
			}
			if lit.Len() > 0 {
				parts = append(parts, bracePart{literal: lit.String()})
				lit.Reset()
			}
			parts = append(parts, bracePart{field: field})
			s = s[closeIdx+1:]
		default:
			lit.WriteByte(s[0])
			s = s[1:]
		}
	}
	if lit.Len() > 0 {
		parts = append(parts, bracePart{literal: lit.String()})
	}
	return &BraceTemplate{parts: parts}, nil
}

// Apply renders the template, failing on the first field without a value.
func (t *BraceTemplate) Apply(values map[string]string) (string, error) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.field == "" {
			b.WriteString(p.literal)
			continue
		}
		v, ok := values[p.field]
		if !ok {
			return "", &MissingFieldError{Field: p.field}
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// Fields lists the distinct field names in order of first use.
func (t *BraceTemplate) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range t.parts {
		if p.field != "" && !seen[p.field] {
			seen[p.field] = true
			out = append(out, p.field)
		}
	}
	return out
}

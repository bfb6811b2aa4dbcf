package taskstore

import (
	"strings"
)

// frontmatter is the parsed key/value header of a task descriptor. Values
// are either string or []string; callers type-assert per field.
type frontmatter map[string]any

// parseFrontmatter implements the minimal header grammar from spec.md
// §4.1: the block between two lines that are exactly "---", supporting
// `key: scalar`, `key: [a, b, c]`, and `key:` followed by indented
// `- item` continuation lines. No external YAML engine is used so the
// gate battery stays fast and hermetic.
//
// Returns the parsed fields and the byte offset in text where the body
// (everything after the closing "---") begins. ok is false if text does
// not open with a "---" frontmatter block.
func parseFrontmatter(text string) (fm frontmatter, bodyOffset int, ok bool) {
	lines := strings.Split(text, "\n")
	if len(lines) < 3 || strings.TrimSpace(lines[0]) != "---" {
		return nil, 0, false
	}

	endIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			endIdx = i
			break
		}
	}
	if endIdx == -1 {
		return nil, 0, false
	}

	fm = frontmatter{}
	var currentListKey string
	for _, raw := range lines[1:endIdx] {
		line := stripComment(raw)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if currentListKey != "" {
			if item, isItem := matchListItem(line); isItem {
				if existing, found := fm[currentListKey].([]string); found {
					fm[currentListKey] = append(existing, item)
				}
				continue
			}
		}
		currentListKey = ""

		key, rest, hasColon := strings.Cut(line, ":")
		if !hasColon {
			continue
		}
		key = strings.TrimSpace(key)
		rest = strings.TrimSpace(rest)

		switch {
		case rest == "":
			fm[key] = []string{}
			currentListKey = key
		case strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]"):
			fm[key] = parseInlineList(rest[1 : len(rest)-1])
		default:
			fm[key] = unquote(rest)
		}
	}

	// Offset of the first byte after the closing "---" line's newline.
	offset := 0
	for i := 0; i <= endIdx; i++ {
		offset += len(lines[i]) + 1
	}
	if offset > len(text) {
		offset = len(text)
	}
	return fm, offset, true
}

func stripComment(line string) string {
	inSingle, inDouble := false, false
	for i, r := range line {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '#':
			if !inSingle && !inDouble {
				return strings.TrimRight(line[:i], " \t")
			}
		}
	}
	return strings.TrimRight(line, " \t")
}

func matchListItem(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "- ") && trimmed != "-" {
		return "", false
	}
	item := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
	return unquote(item), true
}

func parseInlineList(inner string) []string {
	inner = strings.TrimSpace(inner)
	if inner == "" {
		return []string{}
	}
	parts := strings.Split(inner, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, unquote(p))
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func (fm frontmatter) str(key string) string {
	if v, ok := fm[key].(string); ok {
		return v
	}
	return ""
}

func (fm frontmatter) strList(key string) []string {
	if v, ok := fm[key].([]string); ok {
		return v
	}
	return nil
}

func (fm frontmatter) boolean(key string) bool {
	v := strings.ToLower(strings.TrimSpace(fm.str(key)))
	return v == "true" || v == "yes" || v == "1"
}

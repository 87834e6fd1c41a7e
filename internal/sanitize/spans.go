package sanitize

import "strings"

// removeStructuredData drops top-level brace-balanced spans that carry a
// JSON-LD marker. Nested objects are removed with their parent.
func removeStructuredData(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		open := strings.IndexByte(s[i:], '{')
		if open < 0 {
			b.WriteString(s[i:])
			break
		}
		open += i
		end := matchBrace(s, open)
		if end < 0 {
			b.WriteString(s[i : open+1])
			i = open + 1
			continue
		}
		span := s[open : end+1]
		b.WriteString(s[i:open])
		if !strings.Contains(span, "@context") && !strings.Contains(span, `"@type"`) {
			b.WriteString(span)
		}
		i = end + 1
	}
	return b.String()
}

// removeMediaQueries drops "@media ... { ... }" fragments, including nested
// rule blocks. A query with no opening brace is left alone.
func removeMediaQueries(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		at := strings.Index(s[i:], "@media")
		if at < 0 {
			b.WriteString(s[i:])
			break
		}
		at += i
		open := strings.IndexByte(s[at:], '{')
		if open < 0 {
			b.WriteString(s[i:])
			break
		}
		open += at
		end := matchBrace(s, open)
		if end < 0 {
			b.WriteString(s[i : at+len("@media")])
			i = at + len("@media")
			continue
		}
		b.WriteString(s[i:at])
		i = end + 1
	}
	return b.String()
}

// matchBrace returns the index of the '}' closing the '{' at open, or -1.
// Braces inside double-quoted strings do not count.
func matchBrace(s string, open int) int {
	depth := 0
	inString := false
	for j := open; j < len(s); j++ {
		c := s[j]
		if inString {
			switch c {
			case '\\':
				j++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

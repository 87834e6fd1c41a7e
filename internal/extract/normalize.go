package extract

import (
    "strings"

    "golang.org/x/text/unicode/norm"
)

// Normalize applies NFC, trims every line, collapses horizontal whitespace
// runs to one space and keeps at most one blank line between paragraphs.
func Normalize(s string) string {
    return normalizeWhitespace(norm.NFC.String(s))
}

func normalizeWhitespace(s string) string {
    s = strings.ReplaceAll(s, "\r\n", "\n")
    lines := strings.Split(s, "\n")
    out := make([]string, 0, len(lines))
    for _, line := range lines {
        trimmed := strings.TrimSpace(line)
        if trimmed == "" {
            // Keep at most one consecutive blank
            if len(out) == 0 || out[len(out)-1] == "" {
                continue
            }
            out = append(out, "")
            continue
        }
        out = append(out, collapseSpaces(trimmed))
    }
    for len(out) > 0 && out[len(out)-1] == "" {
        out = out[:len(out)-1]
    }
    return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
    var b strings.Builder
    lastSpace := false
    for _, r := range s {
        if r == ' ' || r == '\t' || r == '\r' || r == '\u00a0' {
            if !lastSpace {
                b.WriteByte(' ')
                lastSpace = true
            }
            continue
        }
        b.WriteRune(r)
        lastSpace = false
    }
    return b.String()
}

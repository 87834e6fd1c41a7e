package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/goarticle/internal/pipeline"
	"github.com/hyperifyio/goarticle/internal/style"
)

// renderMarkdown lays out a finished request: translation, commentary and a
// footer with provenance and usage.
func renderMarkdown(res pipeline.Result, now time.Time) string {
	styleName := string(res.Style)
	if cfg, err := style.Get(res.Style); err == nil {
		styleName = cfg.DisplayName
	}

	var sb strings.Builder
	sb.WriteString("# 译文\n\n")
	sb.WriteString(strings.TrimSpace(res.Translation))
	sb.WriteString("\n\n## 解读 · ")
	sb.WriteString(styleName)
	sb.WriteString("\n\n")
	sb.WriteString(strings.TrimSpace(res.Commentary))
	sb.WriteString("\n\n---\n\n")
	fmt.Fprintf(&sb, "> Source: %s\n", res.Source)
	fmt.Fprintf(&sb, "> Style: %s\n", res.Style)
	fmt.Fprintf(&sb, "> Tokens charged: %d (used %d of %d, %d remaining)\n",
		res.TokensCharged, res.Usage.TokensUsed, res.Usage.Limit, res.Usage.TokensRemaining)
	fmt.Fprintf(&sb, "> Request: %s\n", res.RequestID)
	fmt.Fprintf(&sb, "> Generated: %s\n", now.UTC().Format(time.RFC3339))
	return sb.String()
}

// Package paywall decides whether a fetched page is behind a subscription
// barrier. The checks are heuristics: false negatives and false positives are
// expected and callers offer a manual-paste fallback instead of failing.
package paywall

import (
	"net/url"
	"strings"

	"github.com/hyperifyio/goarticle/internal/htmldoc"
)

// Signal names the check that flagged a page.
type Signal string

const (
	SignalNone      Signal = ""
	SignalDomain    Signal = "domain"
	SignalStructure Signal = "structure"
	SignalText      Signal = "text"
	// SignalSparse is set by the extractor when no region yields enough text.
	// It also fires for short free articles.
	SignalSparse Signal = "sparse"
)

// Verdict is the classifier outcome.
type Verdict struct {
	Paywalled bool
	Signal    Signal
}

// SubscriptionDomains are sites known to gate articles.
var SubscriptionDomains = []string{
	"wsj.com",
	"nytimes.com",
	"ft.com",
	"economist.com",
	"bloomberg.com",
	"washingtonpost.com",
	"theatlantic.com",
	"newyorker.com",
	"financialtimes.com",
}

// StructuralIndicators are matched as substrings of class and id attributes.
var StructuralIndicators = []string{
	"paywall",
	"subscription",
	"premium",
	"members-only",
	"locked-content",
	"subscribe-to-read",
	"sign-in-to-read",
	"login-to-read",
	"premium-content",
	"subscriber-only",
}

// TextIndicators are matched against lower-cased visible body text.
var TextIndicators = []string{
	"subscribe to continue reading",
	"sign in to read",
	"log in to read",
	"premium content",
	"subscriber exclusive",
	"members only",
	"this article is for subscribers",
}

// structuralSelector is built once from StructuralIndicators.
var structuralSelector = buildStructuralSelector(StructuralIndicators)

func buildStructuralSelector(indicators []string) string {
	parts := make([]string, 0, len(indicators)*2)
	for _, ind := range indicators {
		parts = append(parts, `[class*="`+ind+`"]`, `[id*="`+ind+`"]`)
	}
	return strings.Join(parts, ", ")
}

// KnownSubscriptionSite reports whether rawURL's host contains one of
// SubscriptionDomains. Unparsable URLs are not known sites.
func KnownSubscriptionSite(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, d := range SubscriptionDomains {
		if strings.Contains(host, d) {
			return true
		}
	}
	return false
}

// Classify runs the domain, structural and textual checks in that order and
// stops at the first hit. doc must be the full, unmodified document.
func Classify(doc htmldoc.Document, rawURL string) Verdict {
	if KnownSubscriptionSite(rawURL) {
		return Verdict{Paywalled: true, Signal: SignalDomain}
	}
	if doc == nil {
		return Verdict{}
	}
	if doc.Exists(structuralSelector) {
		return Verdict{Paywalled: true, Signal: SignalStructure}
	}
	// Phrases may wrap across lines in the source markup.
	body := strings.ToLower(strings.Join(strings.Fields(doc.BodyText()), " "))
	for _, phrase := range TextIndicators {
		if strings.Contains(body, phrase) {
			return Verdict{Paywalled: true, Signal: SignalText}
		}
	}
	return Verdict{}
}

// IsPaywalled parses input and classifies it. A parse failure is treated as
// not paywalled.
func IsPaywalled(input []byte, rawURL string) bool {
	if KnownSubscriptionSite(rawURL) {
		return true
	}
	doc, err := htmldoc.Parse(input)
	if err != nil {
		return false
	}
	return Classify(doc, rawURL).Paywalled
}

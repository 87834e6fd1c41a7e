package htmldoc

import (
	"strings"
	"testing"
)

const page = `<!doctype html>
<html>
  <head><title>T</title><style>.x{}</style></head>
  <body>
    <header>Site header</header>
    <div class="cookie-banner">We use cookies</div>
    <article>
      <h1>Heading</h1>
      <p>First paragraph.</p>
      <p>Second paragraph.</p>
      <script>var tracking = 1;</script>
    </article>
    <footer>Footer</footer>
  </body>
</html>`

func TestFirstText_BlockSeparation(t *testing.T) {
	doc, err := Parse([]byte(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	text, ok := doc.FirstText("article")
	if !ok {
		t.Fatalf("expected article match")
	}
	if !strings.Contains(text, "First paragraph.") || !strings.Contains(text, "Second paragraph.") {
		t.Fatalf("missing paragraphs: %q", text)
	}
	if strings.Contains(text, "tracking") {
		t.Fatalf("script text leaked: %q", text)
	}
	if !strings.Contains(text, "First paragraph.\n\n") {
		t.Fatalf("expected paragraph break after first paragraph: %q", text)
	}
}

func TestFirstText_NoMatch(t *testing.T) {
	doc, err := Parse([]byte(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := doc.FirstText("main"); ok {
		t.Fatalf("did not expect a match for main")
	}
}

func TestExists_AttributeSubstring(t *testing.T) {
	doc, _ := Parse([]byte(`<html><body><div id="x-paywall-gate">hi</div></body></html>`))
	if !doc.Exists(`[class*="paywall"], [id*="paywall"]`) {
		t.Fatalf("expected id substring selector to match")
	}
	if doc.Exists(`[class*="premium"]`) {
		t.Fatalf("did not expect premium match")
	}
}

func TestExists_InvalidSelectorIsMiss(t *testing.T) {
	doc, _ := Parse([]byte(`<html><body><p>x</p></body></html>`))
	if doc.Exists(`[[[`) {
		t.Fatalf("invalid selector must match nothing")
	}
}

func TestRemoveAndBodyText(t *testing.T) {
	doc, err := Parse([]byte(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(doc.BodyText(), "Site header") {
		t.Fatalf("expected header text before removal")
	}
	doc.Remove("header, footer")
	body := doc.BodyText()
	if strings.Contains(body, "Site header") || strings.Contains(body, "Footer") {
		t.Fatalf("expected header/footer removed: %q", body)
	}
	if strings.Contains(body, "We use cookies") {
		t.Fatalf("cookie banner should be skipped: %q", body)
	}
	if !strings.Contains(body, "Heading") {
		t.Fatalf("expected article text to remain: %q", body)
	}
}

func TestFirstText_ConsentClassOnMatchedRoot(t *testing.T) {
	doc, err := Parse([]byte(`<html><body><article class="post consent-aware"><p>Kept body.</p><div class="cookie-bar">Accept</div></article></body></html>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	text, ok := doc.FirstText("article")
	if !ok {
		t.Fatalf("expected article match")
	}
	if !strings.Contains(text, "Kept body.") {
		t.Fatalf("matched root text dropped: %q", text)
	}
	if strings.Contains(text, "Accept") {
		t.Fatalf("nested consent banner kept: %q", text)
	}
}

package rules

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Page is the content a rule set is evaluated against.
// The DOM is parsed on first use so substring and regexp rules never pay for it.
type Page struct {
	HTML string

	once sync.Once
	doc  *goquery.Document
	err  error
}

// NewPage wraps raw or rendered HTML.
func NewPage(html string) *Page {
	return &Page{HTML: html}
}

// Document returns the parsed DOM.
func (p *Page) Document() (*goquery.Document, error) {
	p.once.Do(func() {
		p.doc, p.err = goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	})
	return p.doc, p.err
}

// Matcher is a predicate over page content.
type Matcher interface {
	Match(p *Page) bool
	String() string
}

type containsMatcher struct {
	text string
}

// Contains matches pages whose HTML contains text. The test is case-sensitive.
func Contains(text string) Matcher {
	return containsMatcher{text: text}
}

func (m containsMatcher) Match(p *Page) bool { return strings.Contains(p.HTML, m.text) }
func (m containsMatcher) String() string     { return fmt.Sprintf("contains %q", m.text) }

type regexpMatcher struct {
	re *regexp.Regexp
}

// Regexp matches pages whose HTML matches re.
func Regexp(re *regexp.Regexp) Matcher {
	return regexpMatcher{re: re}
}

func (m regexpMatcher) Match(p *Page) bool { return m.re.MatchString(p.HTML) }
func (m regexpMatcher) String() string     { return fmt.Sprintf("regexp /%s/", m.re) }

type selectorMatcher struct {
	raw string
	sel cascadia.Selector
}

// Selector matches pages with at least one element matching the CSS selector.
func Selector(css string) (Matcher, error) {
	sel, err := cascadia.Compile(css)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", css, err)
	}
	return selectorMatcher{raw: css, sel: sel}, nil
}

func (m selectorMatcher) Match(p *Page) bool {
	doc, err := p.Document()
	if err != nil {
		return false
	}
	return doc.FindMatcher(m.sel).Length() > 0
}

func (m selectorMatcher) String() string { return fmt.Sprintf("selector %q", m.raw) }

type notMatcher struct {
	inner Matcher
}

// Not inverts m, turning a presence test into an absence test.
func Not(m Matcher) Matcher {
	return notMatcher{inner: m}
}

func (m notMatcher) Match(p *Page) bool { return !m.inner.Match(p) }
func (m notMatcher) String() string     { return "not " + m.inner.String() }

package extract

import (
	"bytes"
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/japaniel/bsdetect/pkg/apperr"
)

// DefaultStripElements are removed before any text is read.
var DefaultStripElements = []string{"script", "style", "nav", "header", "footer", "aside", "iframe", "noscript"}

// DefaultContentSelectors are tried in order; the first one that yields
// non-blank text wins, otherwise the whole body is used.
var DefaultContentSelectors = []string{
	"main",
	"article",
	`[role="main"]`,
	".content",
	".main-content",
	"#content",
	"#main",
}

// Page is the readable content of a web page.
type Page struct {
	URL      string
	Title    string
	SiteName string
	Text     string
	// Selector is the content strategy that produced Text, "body" for the
	// fallback.
	Selector string
}

// URLExtractor fetches a page and reduces it to its main text.
type URLExtractor struct {
	Fetcher          *Fetcher
	StripElements    []string
	ContentSelectors []string
}

// NewURLExtractor returns an extractor using the default strategies.
func NewURLExtractor(f *Fetcher) *URLExtractor {
	return &URLExtractor{
		Fetcher:          f,
		StripElements:    DefaultStripElements,
		ContentSelectors: DefaultContentSelectors,
	}
}

// Extract fetches rawURL and returns its main text, truncated to
// MaxTextLength characters. Pages with fewer than MinPageTextLength
// characters fail with apperr.ErrExtractedTextTooShort.
func (x *URLExtractor) Extract(ctx context.Context, rawURL string) (*Page, error) {
	res, err := x.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeHTML(res.Body, res.ContentType)
	if err != nil {
		return nil, apperr.Upstreamf(apperr.CodeExtractFailed, apperr.StageExtract, "decode page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, apperr.Upstreamf(apperr.CodeExtractFailed, apperr.StageExtract, "parse page: %w", err)
	}

	page := &Page{URL: res.URL.String()}
	page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if article, err := readability.FromReader(bytes.NewReader(decoded), res.URL); err == nil {
		if t := strings.TrimSpace(article.Title); t != "" {
			page.Title = t
		}
		page.SiteName = strings.TrimSpace(article.SiteName)
	}

	strip := x.StripElements
	if strip == nil {
		strip = DefaultStripElements
	}
	if len(strip) > 0 {
		doc.Find(strings.Join(strip, ", ")).Remove()
	}

	selectors := x.ContentSelectors
	if len(selectors) == 0 {
		selectors = DefaultContentSelectors
	}
	for _, sel := range selectors {
		if text := normalizeWhitespace(selectionText(doc.Find(sel))); text != "" {
			page.Text, page.Selector = text, sel
			break
		}
	}
	if page.Text == "" {
		body := doc.Find("body")
		if body.Length() == 0 {
			body = doc.Selection
		}
		page.Text, page.Selector = normalizeWhitespace(selectionText(body)), "body"
	}

	if n := utf8.RuneCountInString(page.Text); n < MinPageTextLength {
		return nil, apperr.Validationf(apperr.CodeExtractedTextTooShort, apperr.StageExtract,
			"%d characters; the page might not contain readable content", n)
	}
	page.Text = truncateRunes(page.Text, MaxTextLength)
	return page, nil
}

// decodeHTML converts body to UTF-8 using the declared or sniffed charset.
func decodeHTML(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

var blockElements = map[string]bool{
	"address": true, "article": true, "blockquote": true, "br": true, "dd": true,
	"div": true, "dl": true, "dt": true, "figcaption": true, "figure": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "hr": true, "li": true, "main": true, "ol": true, "p": true,
	"pre": true, "section": true, "table": true, "td": true, "th": true,
	"tr": true, "ul": true,
}

// selectionText concatenates the text of the outermost nodes in sel, putting
// block elements on their own lines so adjacent paragraphs do not fuse words.
func selectionText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	matched := make(map[*html.Node]bool, len(sel.Nodes))
	for _, n := range sel.Nodes {
		matched[n] = true
	}
	for _, n := range sel.Nodes {
		if hasMatchedAncestor(n, matched) {
			continue
		}
		walk(n)
		b.WriteByte('\n')
	}
	return b.String()
}

func hasMatchedAncestor(n *html.Node, matched map[*html.Node]bool) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if matched[p] {
			return true
		}
	}
	return false
}

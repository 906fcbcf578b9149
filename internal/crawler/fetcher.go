package crawler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"
)

var (
	ErrNoTitle = errors.New("page has no title")
	ErrNotHTML = errors.New("response is not html")
)

// Page is what a Fetcher extracts from one URL.
type Page struct {
	URL   string
	Title string
	Text  string
	Links []string
}

// Fetcher retrieves and parses a single page. Any error skips the page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// HTTPFetcher fetches pages over net/http and parses them with goquery.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	policy    *bluemonday.Policy
}

// NewHTTPFetcher builds a fetcher from the crawler config. Deadlines come
// from the caller's context, not the client.
func NewHTTPFetcher(cfg config.CrawlerConfig) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
		policy:    bluemonday.StrictPolicy(),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: status %d", rawURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
		return nil, fmt.Errorf("%s (%s): %w", rawURL, ct, ErrNotHTML)
	}

	var body io.Reader = resp.Body
	if f.maxBody > 0 {
		body = io.LimitReader(resp.Body, f.maxBody)
	}
	return f.parse(base, body)
}

// parse extracts title, outbound links and visible text.
func (f *HTTPFetcher) parse(base *url.URL, r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	title := f.sanitize(doc.Find("title").First().Text())
	if title == "" {
		return nil, ErrNoTitle
	}

	page := &Page{URL: base.String(), Title: title}
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := resolveLink(base, href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		page.Links = append(page.Links, link)
	})

	doc.Find("title, script, style, noscript, template").Remove()
	page.Text = title + " " + visibleText(doc.Selection)
	return page, nil
}

// sanitize strips any markup left in a title and collapses whitespace.
func (f *HTTPFetcher) sanitize(s string) string {
	s = html.UnescapeString(f.policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// resolveLink resolves href against base. Only http(s) targets are kept and
// fragments are dropped.
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}

// visibleText joins every text node with a space. goquery's Text would
// glue adjacent block elements together ("<p>a</p><p>b</p>" -> "ab").
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		switch n.Type {
		case xhtml.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(t)
			}
		case xhtml.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String()
}

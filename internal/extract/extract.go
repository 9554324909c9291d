// Package extract parses fetched markup, resolves and normalizes every
// hyperlink, and classifies each against the crawl job's scope:
// in-scope links feed the frontier, social links match the
// communication-platform rules (and win over external), and everything
// else is external. Classification is a pure function of
// (page, scope, rules) — the same inputs always produce the same split.
package extract

import (
	"bytes"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/opengov-watch/bounty-archiver/internal/rules"
	"github.com/opengov-watch/bounty-archiver/internal/urlutil"
)

// Links is the classified outcome of one page.
type Links struct {
	InScope  []string
	External []string
	Social   []string
}

// FromHTML extracts and classifies all hyperlinks in an HTML body.
// Self-references and non-http(s) targets are dropped. Results are
// deduplicated and sorted for deterministic frontier insertion order.
func FromHTML(body []byte, pageURL string, scope urlutil.Scope, engine *rules.Engine) (Links, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Links{}, err
	}

	self := urlutil.MustNormalize(pageURL)
	inScope := make(map[string]struct{})
	external := make(map[string]struct{})
	social := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		target, err := urlutil.Resolve(pageURL, href)
		if err != nil || target == self {
			return
		}

		switch {
		case engine.IsSocial(target):
			social[target] = struct{}{}
		case scope.Contains(target):
			inScope[target] = struct{}{}
		default:
			external[target] = struct{}{}
		}
	})

	return Links{
		InScope:  sortedKeys(inScope),
		External: sortedKeys(external),
		Social:   sortedKeys(social),
	}, nil
}

// Title extracts a page title: <title>, then the first <h1>, then the
// last URL path segment.
func Title(body []byte, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
			return t
		}
		if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
			return h1
		}
	}
	return titleFromPath(pageURL)
}

func titleFromPath(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "index"
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if last := segs[len(segs)-1]; last != "" {
		return last
	}
	return "index"
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

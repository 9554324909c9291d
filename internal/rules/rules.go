// Package rules implements the URL categorization engine: an ordered
// list of domain patterns mapping each URL to category tags and a
// routing class. Classification is pure and deterministic; the review
// gate uses the routing class to pick a destination collection.
package rules

import (
	"strings"

	"github.com/opengov-watch/bounty-archiver/internal/urlutil"
)

// Route is the destination class assigned to a URL.
type Route string

const (
	RouteArchive   Route = "archive"   // fetch and store content
	RouteReference Route = "reference" // record as associated URL, never fetched
	RouteSocial    Route = "social"    // communication platform, metadata only
	RouteIgnored   Route = "ignored"   // suppressed entirely
)

// Rule matches a domain pattern to a category and routing class.
// Pattern forms:
//
//	docs.example.com   exact domain
//	docs.*             domain prefix
//	*.gitbook.io       domain suffix
//	gitbook            bare substring of the domain
type Rule struct {
	Pattern  string `mapstructure:"pattern"  yaml:"pattern"`
	Category string `mapstructure:"category" yaml:"category"`
	Route    Route  `mapstructure:"route"    yaml:"route"`
}

// Matches reports whether the rule's pattern matches the given domain.
func (r Rule) Matches(domain string) bool {
	p := strings.ToLower(strings.TrimSpace(r.Pattern))
	domain = strings.ToLower(domain)

	switch {
	case p == "":
		return false
	case strings.HasPrefix(p, "*."):
		suffix := p[1:] // keep the dot: *.gitbook.io must not match gitbook.io itself
		return strings.HasSuffix(domain, suffix)
	case strings.HasSuffix(p, ".*"):
		return strings.HasPrefix(domain, p[:len(p)-1]) // keep the dot
	case strings.Contains(p, "."):
		return domain == p
	default:
		return strings.Contains(domain, p)
	}
}

// Engine evaluates rules in configuration order; the first match wins
// the routing decision.
type Engine struct {
	rules    []Rule
	fallback Route
}

// NewEngine builds an engine over an ordered rule list. URLs matching
// no rule route to archive with the "other" category.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules, fallback: RouteArchive}
}

// Classification is the outcome of classifying one URL.
type Classification struct {
	Categories []string
	Route      Route
}

// Classify maps a URL to its category tags and exactly one routing
// class. Every rule whose pattern matches contributes its category; the
// first matching rule decides the route.
func (e *Engine) Classify(rawURL string) Classification {
	domain := urlutil.Host(rawURL)
	if domain == "" {
		return Classification{Categories: []string{"other"}, Route: e.fallback}
	}

	var categories []string
	route := Route("")
	seen := make(map[string]struct{})

	for _, r := range e.rules {
		if !r.Matches(domain) {
			continue
		}
		if route == "" {
			route = r.Route
		}
		if r.Category != "" {
			if _, dup := seen[r.Category]; !dup {
				seen[r.Category] = struct{}{}
				categories = append(categories, r.Category)
			}
		}
	}

	if route == "" {
		route = e.fallback
	}
	if len(categories) == 0 {
		categories = []string{"other"}
	}
	return Classification{Categories: categories, Route: route}
}

// IsSocial reports whether a URL routes to the social class. Social
// takes precedence over external when classifying discovered links.
func (e *Engine) IsSocial(rawURL string) bool {
	return e.Classify(rawURL).Route == RouteSocial
}

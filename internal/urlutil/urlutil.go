// Package urlutil provides URL normalization and crawl-scope checks.
//
// Every collection in the state store is keyed by the normalized form
// returned by Normalize; comparing raw URLs is how duplicate work creeps
// back in.
package urlutil

import (
	"errors"
	"net/url"
	"path"
	"sort"
	"strings"
)

var ErrInvalidURL = errors.New("invalid URL")

// Normalize canonicalizes a URL for deduplication:
// - lowercases scheme and host
// - removes the fragment
// - removes default ports (80 for http, 443 for https)
// - sorts query parameters
// - removes the trailing slash (except root)
//
// Normalize is idempotent: Normalize(Normalize(u)) == Normalize(u).
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURL
	}
	if u.Host == "" {
		return "", ErrInvalidURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.RawQuery != "" {
		params := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sorted []string
		for _, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for _, v := range vals {
				sorted = append(sorted, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(sorted, "&")
	}

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// MustNormalize is Normalize for URLs already known to be valid; it
// returns the input unchanged when parsing fails.
func MustNormalize(rawURL string) string {
	n, err := Normalize(rawURL)
	if err != nil {
		return rawURL
	}
	return n
}

// Host returns the lowercased host of a URL, or "" if unparseable.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Scope is the boundary of one crawl job: links are followed only when
// they share the job's host and sit under its base path.
type Scope struct {
	Host     string
	BasePath string
}

// NewScope derives the crawl scope from a job's initial URL. The
// trailing path segment is stripped unless the URL ends in "/", so
// "https://use.ink/ubator/apply" scopes to /ubator/ while
// "https://use.ink/ubator/" scopes to itself.
func NewScope(initialURL string) (Scope, error) {
	u, err := url.Parse(initialURL)
	if err != nil || u.Host == "" {
		return Scope{}, ErrInvalidURL
	}

	base := u.Path
	if base == "" {
		base = "/"
	}
	if !strings.HasSuffix(base, "/") {
		base = path.Dir(base)
	}
	base = strings.TrimRight(base, "/")

	return Scope{
		Host:     strings.ToLower(u.Hostname()),
		BasePath: base,
	}, nil
}

// Contains reports whether a URL falls inside the scope: same host and
// path under the base path.
func (s Scope) Contains(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if strings.ToLower(u.Hostname()) != s.Host {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	return strings.HasPrefix(p, s.BasePath)
}

// Resolve resolves a possibly-relative href against a page URL and
// returns the normalized absolute form. Non-HTTP schemes (mailto:,
// javascript:, data:) are rejected.
func Resolve(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", ErrInvalidURL
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", ErrInvalidURL
	}
	return Normalize(base.ResolveReference(ref).String())
}

package crawler

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opengov-watch/bounty-archiver/internal/fetcher"
)

// pageMeta is the companion metadata written next to every stored page.
type pageMeta struct {
	URL        string    `yaml:"url"`
	Title      string    `yaml:"title,omitempty"`
	StatusCode int       `yaml:"status_code"`
	FetchedAt  time.Time `yaml:"fetched_at"`
	Note       string    `yaml:"note,omitempty"`
}

// scrapedDir returns the artifact directory for a record, relative to
// the root dir.
func scrapedDir(slugDir string) string {
	return path.Join("bounties", slugDir, "scraped")
}

// pagePath maps a URL to its content file path under the record's
// scraped directory: <scraped>/<domain>/<url path dirs>/<name><ext>.
// Directory-style URLs store as index<ext>.
func pagePath(slugDir, pageURL, ext string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse URL %q: %w", pageURL, err)
	}

	p := strings.Trim(u.Path, "/")
	var dir, name string
	if p == "" || strings.HasSuffix(u.Path, "/") {
		dir, name = p, "index"+ext
	} else {
		dir, name = path.Dir(p), path.Base(p)
		if dir == "." {
			dir = ""
		}
		if path.Ext(name) == "" {
			name += ext
		}
	}

	return filepath.Join(scrapedDir(slugDir), u.Hostname(), filepath.FromSlash(dir), name), nil
}

// writePage stores the page body verbatim plus its .meta.yml companion
// and returns the content file location relative to rootDir.
func writePage(rootDir, slugDir, pageURL string, page *fetcher.Page, title, note string) (string, error) {
	location, err := pagePath(slugDir, pageURL, extensionFor(page.ContentType, pageURL))
	if err != nil {
		return "", err
	}

	full := filepath.Join(rootDir, location)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create content dir: %w", err)
	}
	if err := os.WriteFile(full, page.Body, 0o644); err != nil {
		return "", fmt.Errorf("write content: %w", err)
	}

	meta := pageMeta{
		URL:        pageURL,
		Title:      title,
		StatusCode: page.StatusCode,
		FetchedAt:  page.FetchedAt,
		Note:       note,
	}
	raw, err := yaml.Marshal(&meta)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(full+".meta.yml", raw, 0o644); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}

	return location, nil
}

// extensionFor picks a file extension from the content type, falling
// back to the URL's own suffix and finally .html.
func extensionFor(contentType, pageURL string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/html"):
		return ".html"
	case strings.Contains(ct, "application/pdf"):
		return ".pdf"
	case strings.Contains(ct, "application/json"):
		return ".json"
	case strings.Contains(ct, "text/markdown"):
		return ".md"
	case strings.Contains(ct, "text/plain"):
		return ".txt"
	case strings.Contains(ct, "xml"):
		return ".xml"
	}

	if u, err := url.Parse(pageURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return ext
		}
	}
	return ".html"
}

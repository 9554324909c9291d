// Package catalog reads the record catalog: one directory per record
// under <root>/bounties, named "<id>-<slug>", each carrying a
// metadata.yml with candidate URL fields. The catalog is an external
// collaborator; this package only validates the fields the archiver
// consumes.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fields in the links map that point at governance/tracking systems and
// are never archived.
var excludedLinkFields = map[string]struct{}{
	"subsquare":    {},
	"polkassembly": {},
	"forum":        {},
	"spreadsheet":  {},
}

// metadata is the subset of metadata.yml the archiver reads. Link
// fields are free-form; absent sections decode to nil.
type metadata struct {
	Links   map[string]string `yaml:"links"`
	Contact *struct {
		ApplicationForm string `yaml:"applicationForm"`
	} `yaml:"contact"`
}

// Record is one catalog entry.
type Record struct {
	ID   int
	Slug string
	Dir  string

	links           map[string]string
	applicationForm string
}

// CandidateURL is a URL field extracted from a record, with the field
// path it came from.
type CandidateURL struct {
	URL    string
	Source string
}

// CandidateURLs returns the record's archivable URL fields in stable
// field order.
func (r *Record) CandidateURLs() []CandidateURL {
	fields := make([]string, 0, len(r.links))
	for f := range r.links {
		if _, excluded := excludedLinkFields[f]; excluded {
			continue
		}
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var out []CandidateURL
	for _, f := range fields {
		u := r.links[f]
		if strings.HasPrefix(u, "http") {
			out = append(out, CandidateURL{URL: u, Source: "metadata.links." + f})
		}
	}
	if strings.HasPrefix(r.applicationForm, "http") {
		out = append(out, CandidateURL{URL: r.applicationForm, Source: "metadata.contact.applicationForm"})
	}
	return out
}

// Catalog is a loaded snapshot of all records.
type Catalog struct {
	records []Record
	byID    map[int]*Record
}

// Records returns all records in ID order.
func (c *Catalog) Records() []Record { return c.records }

// Lookup returns the record with the given ID, or nil.
func (c *Catalog) Lookup(id int) *Record { return c.byID[id] }

// SlugDir returns the "<id>-<slug>" directory name for a record ID.
func (c *Catalog) SlugDir(id int) (string, error) {
	r := c.byID[id]
	if r == nil {
		return "", fmt.Errorf("no catalog record with id %d", id)
	}
	return filepath.Base(r.Dir), nil
}

// Load scans <root>/bounties for record directories. Directories with
// unparseable names or metadata are skipped with a warning; a missing
// bounties directory is an error.
func Load(rootDir string, logger *slog.Logger) (*Catalog, error) {
	dir := filepath.Join(rootDir, "bounties")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	c := &Catalog{byID: make(map[int]*Record)}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id, slug, err := parseDirName(entry.Name())
		if err != nil {
			logger.Warn("skipping catalog directory", "dir", entry.Name(), "error", err)
			continue
		}

		recordDir := filepath.Join(dir, entry.Name())
		meta, err := loadMetadata(filepath.Join(recordDir, "metadata.yml"))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			logger.Warn("skipping record with bad metadata", "dir", entry.Name(), "error", err)
			continue
		}

		rec := Record{ID: id, Slug: slug, Dir: recordDir, links: meta.Links}
		if meta.Contact != nil {
			rec.applicationForm = meta.Contact.ApplicationForm
		}
		c.records = append(c.records, rec)
	}

	sort.Slice(c.records, func(i, j int) bool { return c.records[i].ID < c.records[j].ID })
	for i := range c.records {
		c.byID[c.records[i].ID] = &c.records[i]
	}
	return c, nil
}

func parseDirName(name string) (int, string, error) {
	idPart, slug, found := strings.Cut(name, "-")
	if !found {
		return 0, "", fmt.Errorf("directory %q has no id prefix", name)
	}
	id, err := strconv.Atoi(idPart)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("directory %q has invalid id prefix", name)
	}
	return id, slug, nil
}

func loadMetadata(path string) (*metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta metadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &meta, nil
}

// Package siteindex builds the JSON index of archived content that the
// static browsing interface renders: every record's scraped files
// grouped by domain, with titles and timestamps pulled from the
// companion metadata files.
package siteindex

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEntry describes one archived file.
type FileEntry struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	FetchedAt string `json:"fetched_at,omitempty"`
}

// DomainEntry groups a record's files by source domain.
type DomainEntry struct {
	Domain    string      `json:"domain"`
	FileCount int         `json:"file_count"`
	Files     []FileEntry `json:"files"`
}

// RecordEntry is the archived content of one catalog record.
type RecordEntry struct {
	Domains []DomainEntry `json:"domains"`
}

// Index is the complete browse index.
type Index struct {
	GeneratedAt  time.Time              `json:"generated_at"`
	RecordCount  int                    `json:"record_count"`
	TotalDomains int                    `json:"total_domains"`
	TotalFiles   int                    `json:"total_files"`
	Records      map[string]RecordEntry `json:"records"`
}

// fileMeta is the subset of a .meta.yml companion the index surfaces.
type fileMeta struct {
	URL       string    `yaml:"url"`
	Title     string    `yaml:"title"`
	FetchedAt time.Time `yaml:"fetched_at"`
}

// Build scans <root>/bounties/*/scraped and assembles the index.
// Records without archived content are omitted.
func Build(rootDir string, logger *slog.Logger) (*Index, error) {
	bounties := filepath.Join(rootDir, "bounties")
	entries, err := os.ReadDir(bounties)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	idx := &Index{
		GeneratedAt: time.Now().UTC(),
		Records:     make(map[string]RecordEntry),
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		idPart, _, found := strings.Cut(entry.Name(), "-")
		if !found {
			continue
		}
		id, err := strconv.Atoi(idPart)
		if err != nil {
			continue
		}

		rec, err := scanRecord(filepath.Join(bounties, entry.Name(), "scraped"), logger)
		if err != nil {
			return nil, err
		}
		if len(rec.Domains) == 0 {
			continue
		}

		idx.Records[strconv.Itoa(id)] = rec
		idx.RecordCount++
		idx.TotalDomains += len(rec.Domains)
		for _, d := range rec.Domains {
			idx.TotalFiles += d.FileCount
		}
	}

	return idx, nil
}

// Write persists the index as JSON via temp-file-and-rename.
func Write(idx *Index, outputPath string) error {
	raw, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	dir := filepath.Dir(outputPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(outputPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmpName, outputPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

func scanRecord(scrapedDir string, logger *slog.Logger) (RecordEntry, error) {
	var rec RecordEntry

	domainDirs, err := os.ReadDir(scrapedDir)
	if os.IsNotExist(err) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("read scraped dir: %w", err)
	}

	for _, dd := range domainDirs {
		if !dd.IsDir() {
			continue
		}
		domain := dd.Name()
		root := filepath.Join(scrapedDir, domain)

		var files []FileEntry
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || strings.HasSuffix(p, ".meta.yml") {
				return nil
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			fe := FileEntry{
				Path: filepath.ToSlash(rel),
				Name: d.Name(),
			}
			if meta, ok := readMeta(p + ".meta.yml"); ok {
				fe.URL = meta.URL
				fe.Title = meta.Title
				if !meta.FetchedAt.IsZero() {
					fe.FetchedAt = meta.FetchedAt.Format(time.RFC3339)
				}
			} else {
				logger.Debug("archived file has no metadata companion", "file", p)
			}
			files = append(files, fe)
			return nil
		})
		if err != nil {
			return rec, fmt.Errorf("walk %s: %w", root, err)
		}
		if len(files) == 0 {
			continue
		}

		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		rec.Domains = append(rec.Domains, DomainEntry{
			Domain:    domain,
			FileCount: len(files),
			Files:     files,
		})
	}

	sort.Slice(rec.Domains, func(i, j int) bool { return rec.Domains[i].Domain < rec.Domains[j].Domain })
	return rec, nil
}

func readMeta(path string) (fileMeta, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileMeta{}, false
	}
	var meta fileMeta
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return fileMeta{}, false
	}
	return meta, true
}

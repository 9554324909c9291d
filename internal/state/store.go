// Package state persists the archiver's durable collections: queue,
// index, ignore list, suggestions, discovered links, results, and
// references. Each collection is one YAML file in the state directory,
// rewritten via temp-file-and-rename so an interrupted run never leaves
// a half-written collection behind. Every membership check and dedup
// key uses the normalized URL form.
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opengov-watch/bounty-archiver/internal/urlutil"
)

// ErrCorrupt marks a persisted collection that failed to parse. Fatal
// for the invoking stage; entries are never silently dropped.
var ErrCorrupt = errors.New("state collection corrupt")

const (
	queueFile       = "queue.yml"
	indexFile       = "index.yml"
	ignoreFile      = "ignore.yml"
	suggestionsFile = "suggestions.yml"
	linksFile       = "links.yml"
	resultsFile     = "results.yml"
	refsFile        = "refs.yml"
)

// Store manages the collection files under one state directory. Stages
// are single-writer: two stages must not mutate the same store
// concurrently.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New opens (creating if needed) a store rooted at dir.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{dir: dir, logger: logger.With("component", "state")}, nil
}

// Dir returns the state directory path.
func (s *Store) Dir() string { return s.dir }

// document is the on-disk envelope shared by all collections.
type document[T any] struct {
	Version     string    `yaml:"version"`
	LastUpdated time.Time `yaml:"last_updated"`
	Entries     []T       `yaml:"entries"`
}

func load[T any](s *Store, name string) ([]T, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	var doc document[T]
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return doc.Entries, nil
}

// save replaces a collection atomically: marshal to a temp file in the
// same directory, then rename over the target.
func save[T any](s *Store, name string, entries []T) error {
	doc := document[T]{
		Version:     "1.0",
		LastUpdated: time.Now().UTC(),
		Entries:     entries,
	}
	raw, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// --- Queue ---

func (s *Store) Queue() ([]QueueEntry, error) { return load[QueueEntry](s, queueFile) }

// AddToQueue appends entries not already queued (by normalized URL).
// The entry keeps the URL spelling it arrived with: the crawler derives
// the job scope from it, and a trailing slash changes the base path.
// Returns the number actually added.
func (s *Store) AddToQueue(entries ...QueueEntry) (int, error) {
	queue, err := s.Queue()
	if err != nil {
		return 0, err
	}
	existing := make(map[string]struct{}, len(queue))
	for _, e := range queue {
		existing[urlutil.MustNormalize(e.URL)] = struct{}{}
	}

	added := 0
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return added, err
		}
		norm, err := urlutil.Normalize(e.URL)
		if err != nil {
			return added, fmt.Errorf("queue entry %q: %w", e.URL, err)
		}
		if _, dup := existing[norm]; dup {
			continue
		}
		existing[norm] = struct{}{}
		queue = append(queue, e)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, save(s, queueFile, queue)
}

// RemoveFromQueue drops the entries whose normalized URL matches.
func (s *Store) RemoveFromQueue(urls ...string) error {
	queue, err := s.Queue()
	if err != nil {
		return err
	}
	drop := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		drop[urlutil.MustNormalize(u)] = struct{}{}
	}
	kept := queue[:0]
	for _, e := range queue {
		if _, ok := drop[urlutil.MustNormalize(e.URL)]; !ok {
			kept = append(kept, e)
		}
	}
	return save(s, queueFile, kept)
}

// --- Index ---

func (s *Store) Index() ([]IndexEntry, error) { return load[IndexEntry](s, indexFile) }

// IsIndexed reports whether a URL has already been archived.
func (s *Store) IsIndexed(rawURL string) (bool, error) {
	index, err := s.Index()
	if err != nil {
		return false, err
	}
	norm := urlutil.MustNormalize(rawURL)
	for _, e := range index {
		if urlutil.MustNormalize(e.URL) == norm {
			return true, nil
		}
	}
	return false, nil
}

// MergeIndex writes or updates the index entry for a URL.
func (s *Store) MergeIndex(entry IndexEntry) error {
	index, err := s.Index()
	if err != nil {
		return err
	}
	norm, err := urlutil.Normalize(entry.URL)
	if err != nil {
		return fmt.Errorf("index entry %q: %w", entry.URL, err)
	}
	entry.URL = norm

	for i, e := range index {
		if urlutil.MustNormalize(e.URL) == norm {
			index[i] = entry
			return save(s, indexFile, index)
		}
	}
	return save(s, indexFile, append(index, entry))
}

// RemoveFromIndex removes entries by exact URL or by record id (zero
// values match nothing). Returns the number removed.
func (s *Store) RemoveFromIndex(rawURL string, recordID int) (int, error) {
	index, err := s.Index()
	if err != nil {
		return 0, err
	}
	norm := ""
	if rawURL != "" {
		norm = urlutil.MustNormalize(rawURL)
	}
	kept := index[:0]
	removed := 0
	for _, e := range index {
		if (norm != "" && urlutil.MustNormalize(e.URL) == norm) ||
			(recordID != 0 && e.RecordID == recordID) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, save(s, indexFile, kept)
}

// --- Ignore list ---

func (s *Store) IgnoreList() ([]IgnoreEntry, error) { return load[IgnoreEntry](s, ignoreFile) }

// AddToIgnore appends an ignore pattern if not already present.
func (s *Store) AddToIgnore(entry IgnoreEntry) error {
	list, err := s.IgnoreList()
	if err != nil {
		return err
	}
	pattern := normalizePattern(entry.Pattern)
	for _, e := range list {
		if normalizePattern(e.Pattern) == pattern {
			return nil
		}
	}
	entry.Pattern = pattern
	return save(s, ignoreFile, append(list, entry))
}

// IsIgnored reports whether a URL matches any ignore entry: exact
// normalized URL, or domain equal / dot-suffix match for bare-domain
// patterns.
func (s *Store) IsIgnored(rawURL string) (bool, string, error) {
	list, err := s.IgnoreList()
	if err != nil {
		return false, "", err
	}
	return matchIgnore(rawURL, list)
}

func matchIgnore(rawURL string, list []IgnoreEntry) (bool, string, error) {
	norm := urlutil.MustNormalize(rawURL)
	domain := urlutil.Host(rawURL)

	for _, e := range list {
		pattern := normalizePattern(e.Pattern)
		if pattern == "" {
			continue
		}
		if strings.Contains(pattern, "://") {
			if norm == urlutil.MustNormalize(pattern) {
				return true, e.Reason, nil
			}
			pd := urlutil.Host(pattern)
			if pd != "" && hasOnlyRootPath(pattern) && domainMatches(domain, pd) {
				return true, e.Reason, nil
			}
			continue
		}
		if domainMatches(domain, strings.ToLower(pattern)) {
			return true, e.Reason, nil
		}
	}
	return false, "", nil
}

func normalizePattern(p string) string {
	return strings.TrimRight(strings.TrimSpace(p), "/")
}

func domainMatches(domain, pattern string) bool {
	return domain == pattern || strings.HasSuffix(domain, "."+pattern)
}

// hasOnlyRootPath reports whether a URL pattern names a whole site
// (no path component), in which case it suppresses the entire domain.
func hasOnlyRootPath(rawURL string) bool {
	norm := urlutil.MustNormalize(rawURL)
	rest := norm[strings.Index(norm, "://")+3:]
	slash := strings.Index(rest, "/")
	return slash == -1 || slash == len(rest)-1
}

// --- Suggestions ---

func (s *Store) Suggestions() ([]Suggestion, error) { return load[Suggestion](s, suggestionsFile) }

// AddSuggestions appends suggestions not already present (by normalized
// URL), keeping each suggestion's original spelling for the queue.
// Returns the number actually added.
func (s *Store) AddSuggestions(suggestions ...Suggestion) (int, error) {
	current, err := s.Suggestions()
	if err != nil {
		return 0, err
	}
	existing := make(map[string]struct{}, len(current))
	for _, sg := range current {
		existing[urlutil.MustNormalize(sg.URL)] = struct{}{}
	}

	added := 0
	for _, sg := range suggestions {
		norm, err := urlutil.Normalize(sg.URL)
		if err != nil {
			s.logger.Warn("dropping unparseable suggestion", "url", sg.URL)
			continue
		}
		if _, dup := existing[norm]; dup {
			continue
		}
		existing[norm] = struct{}{}
		current = append(current, sg)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, save(s, suggestionsFile, current)
}

// ReplaceSuggestions overwrites the pending suggestion set. The review
// gate uses it to persist what remains after a session.
func (s *Store) ReplaceSuggestions(suggestions []Suggestion) error {
	return save(s, suggestionsFile, suggestions)
}

// --- Discovered links ---

func (s *Store) Links() ([]DiscoveredLink, error) { return load[DiscoveredLink](s, linksFile) }

// AddLinks appends discovered links, deduplicating on the normalized
// (url, source_url) pair so the same link found on different pages
// keeps each provenance.
func (s *Store) AddLinks(links ...DiscoveredLink) (int, error) {
	current, err := s.Links()
	if err != nil {
		return 0, err
	}
	type key struct{ url, source string }
	existing := make(map[key]struct{}, len(current))
	for _, l := range current {
		existing[key{urlutil.MustNormalize(l.URL), urlutil.MustNormalize(l.SourceURL)}] = struct{}{}
	}

	added := 0
	for _, l := range links {
		norm, err := urlutil.Normalize(l.URL)
		if err != nil {
			continue
		}
		k := key{norm, urlutil.MustNormalize(l.SourceURL)}
		if _, dup := existing[k]; dup {
			continue
		}
		l.URL = norm
		existing[k] = struct{}{}
		current = append(current, l)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, save(s, linksFile, current)
}

// --- Results ---

func (s *Store) Results() ([]Result, error) { return load[Result](s, resultsFile) }

// AppendResult appends one result entry; results are write-once per
// attempt and never rewritten.
func (s *Store) AppendResult(r Result) error {
	results, err := s.Results()
	if err != nil {
		return err
	}
	return save(s, resultsFile, append(results, r))
}

// --- References ---

func (s *Store) References() ([]Reference, error) { return load[Reference](s, refsFile) }

// AddReference records an accepted associated-URL or social link.
func (s *Store) AddReference(ref Reference) error {
	refs, err := s.References()
	if err != nil {
		return err
	}
	norm, err := urlutil.Normalize(ref.URL)
	if err != nil {
		return fmt.Errorf("reference %q: %w", ref.URL, err)
	}
	for _, e := range refs {
		if urlutil.MustNormalize(e.URL) == norm && e.RecordID == ref.RecordID {
			return nil
		}
	}
	ref.URL = norm
	return save(s, refsFile, append(refs, ref))
}

// --- Reset ---

// Reset clears the dedup-relevant collections: index, results, links,
// suggestions, and references. Queue and ignore list are preserved.
// Each collection is cleared by one atomic replace, so a crash
// mid-reset leaves every collection either fully cleared or untouched.
func (s *Store) Reset() error {
	for _, name := range []string{indexFile, resultsFile, linksFile, suggestionsFile, refsFile} {
		if err := save(s, name, []struct{}{}); err != nil {
			return fmt.Errorf("reset %s: %w", name, err)
		}
		s.logger.Info("collection cleared", "file", name)
	}
	return nil
}

// KnownURLs returns the normalized URLs present in queue, index,
// suggestions, and references — everything the suggestion generator
// must not re-emit. Ignore patterns are matched separately because they
// may cover whole domains.
func (s *Store) KnownURLs() (map[string]struct{}, error) {
	known := make(map[string]struct{})

	queue, err := s.Queue()
	if err != nil {
		return nil, err
	}
	for _, e := range queue {
		known[urlutil.MustNormalize(e.URL)] = struct{}{}
	}

	index, err := s.Index()
	if err != nil {
		return nil, err
	}
	for _, e := range index {
		known[urlutil.MustNormalize(e.URL)] = struct{}{}
	}

	suggestions, err := s.Suggestions()
	if err != nil {
		return nil, err
	}
	for _, e := range suggestions {
		known[urlutil.MustNormalize(e.URL)] = struct{}{}
	}

	refs, err := s.References()
	if err != nil {
		return nil, err
	}
	for _, e := range refs {
		known[urlutil.MustNormalize(e.URL)] = struct{}{}
	}

	return known, nil
}

// Stats summarizes collection sizes for the stats command.
type Stats struct {
	Queue       int
	Index       int
	Ignore      int
	Suggestions int
	Links       int
	Results     int
	References  int
	ByRecord    map[int]int // indexed URLs per record
}

// CollectStats loads every collection and counts entries.
func (s *Store) CollectStats() (Stats, error) {
	var st Stats

	queue, err := s.Queue()
	if err != nil {
		return st, err
	}
	index, err := s.Index()
	if err != nil {
		return st, err
	}
	ignore, err := s.IgnoreList()
	if err != nil {
		return st, err
	}
	suggestions, err := s.Suggestions()
	if err != nil {
		return st, err
	}
	links, err := s.Links()
	if err != nil {
		return st, err
	}
	results, err := s.Results()
	if err != nil {
		return st, err
	}
	refs, err := s.References()
	if err != nil {
		return st, err
	}

	st.Queue = len(queue)
	st.Index = len(index)
	st.Ignore = len(ignore)
	st.Suggestions = len(suggestions)
	st.Links = len(links)
	st.Results = len(results)
	st.References = len(refs)
	st.ByRecord = make(map[int]int)
	for _, e := range index {
		st.ByRecord[e.RecordID]++
	}
	return st, nil
}

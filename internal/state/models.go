package state

import (
	"fmt"
	"time"
)

// Mode selects how a queue entry is crawled.
type Mode string

const (
	ModeSingle    Mode = "single"
	ModeRecursive Mode = "recursive"
)

// Status is the outcome of one crawl job attempt.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// SuggestionType mirrors the routing decision made for a suggestion.
type SuggestionType string

const (
	TypeArchive    SuggestionType = "archive"
	TypeAssociated SuggestionType = "associated_url"
	TypeSocial     SuggestionType = "social"
)

// QueueEntry is a crawl job waiting to run. Created by the review gate,
// removed by the crawler on completed or partial, retained on failed.
type QueueEntry struct {
	RecordID int    `yaml:"record_id"`
	URL      string `yaml:"url"`
	Mode     Mode   `yaml:"mode"`
	MaxDepth int    `yaml:"max_depth,omitempty"`
	Source   string `yaml:"source,omitempty"`
}

// Validate checks entry fields before the entry enters the store.
func (e QueueEntry) Validate() error {
	if e.RecordID <= 0 {
		return fmt.Errorf("queue entry: invalid record_id %d", e.RecordID)
	}
	if e.URL == "" {
		return fmt.Errorf("queue entry: empty url")
	}
	if e.Mode != ModeSingle && e.Mode != ModeRecursive {
		return fmt.Errorf("queue entry: invalid mode %q", e.Mode)
	}
	if e.MaxDepth < 0 || e.MaxDepth > 9 {
		return fmt.Errorf("queue entry: max_depth %d out of range 0-9", e.MaxDepth)
	}
	return nil
}

// IndexEntry records one successfully archived URL. Its presence is the
// authoritative "already archived" signal; only reset/maintenance
// removes it.
type IndexEntry struct {
	URL       string    `yaml:"url"`
	RecordID  int       `yaml:"record_id"`
	FetchedAt time.Time `yaml:"fetched_at"`
	Location  string    `yaml:"location"`
	PageCount int       `yaml:"page_count"`
}

// IgnoreEntry permanently suppresses suggestion and crawling of
// matching URLs. Pattern is a full URL or a bare domain; a domain
// matches itself and its subdomains.
type IgnoreEntry struct {
	Pattern string `yaml:"pattern"`
	Reason  string `yaml:"reason,omitempty"`
}

// Suggestion is a candidate URL awaiting review. Consumed by the review
// gate into exactly one of queue, reference sink, or ignore list, or
// left pending.
type Suggestion struct {
	RecordID   int            `yaml:"record_id"`
	URL        string         `yaml:"url"`
	Mode       Mode           `yaml:"mode"`
	MaxDepth   int            `yaml:"max_depth,omitempty"`
	Source     string         `yaml:"source"`
	Categories []string       `yaml:"categories,omitempty"`
	Type       SuggestionType `yaml:"type"`
}

// DiscoveredLink is an out-of-scope link found during a crawl, kept
// with provenance for the next suggestion pass.
type DiscoveredLink struct {
	URL          string    `yaml:"url"`
	SourceURL    string    `yaml:"source_url"`
	RecordID     int       `yaml:"record_id"`
	Categories   []string  `yaml:"categories,omitempty"`
	DiscoveredAt time.Time `yaml:"discovered_at"`
}

// Result is the write-once outcome of one queue entry attempt.
type Result struct {
	RecordID     int       `yaml:"record_id"`
	URL          string    `yaml:"url"`
	Mode         Mode      `yaml:"mode"`
	Status       Status    `yaml:"status"`
	PagesFetched int       `yaml:"pages_fetched"`
	FilesCreated []string  `yaml:"files_created,omitempty"`
	VisitedURLs  []string  `yaml:"visited_urls,omitempty"`
	Errors       []string  `yaml:"errors,omitempty"`
	FetchedAt    time.Time `yaml:"fetched_at"`
}

// Reference is an accepted associated-URL or social link, recorded as
// record metadata instead of being crawled.
type Reference struct {
	RecordID   int            `yaml:"record_id"`
	URL        string         `yaml:"url"`
	Categories []string       `yaml:"categories,omitempty"`
	Type       SuggestionType `yaml:"type"`
}

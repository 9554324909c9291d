// Package crawler consumes queue entries and archives their pages. One
// queue entry becomes one job: a breadth-first frontier of (url, depth)
// pairs bounded by the job's scope and max depth, with a job-scoped
// visited set keyed by normalized URL. Per-URL failures never abort a
// job; per-URL results are flushed to the state store as they happen so
// an interrupted run loses at most the in-flight fetch.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opengov-watch/bounty-archiver/internal/catalog"
	"github.com/opengov-watch/bounty-archiver/internal/config"
	"github.com/opengov-watch/bounty-archiver/internal/extract"
	"github.com/opengov-watch/bounty-archiver/internal/fetcher"
	"github.com/opengov-watch/bounty-archiver/internal/rules"
	"github.com/opengov-watch/bounty-archiver/internal/state"
	"github.com/opengov-watch/bounty-archiver/internal/urlutil"
)

// ErrSeedFetch marks a job whose initial URL could not be fetched. The
// queue entry stays put for a later retry.
var ErrSeedFetch = errors.New("initial URL fetch failed")

// Crawler processes the queue in order, one single-threaded job at a
// time.
type Crawler struct {
	store   *state.Store
	fetcher fetcher.Fetcher
	engine  *rules.Engine
	catalog *catalog.Catalog
	rootDir string
	delay   time.Duration
	logger  *slog.Logger
}

// New creates a crawler.
func New(store *state.Store, f fetcher.Fetcher, engine *rules.Engine, cat *catalog.Catalog, cfg *config.Config, logger *slog.Logger) *Crawler {
	return &Crawler{
		store:   store,
		fetcher: f,
		engine:  engine,
		catalog: cat,
		rootDir: cfg.RootDir,
		delay:   cfg.Fetch.Delay,
		logger:  logger.With("component", "crawler"),
	}
}

// RunSummary aggregates a queue-processing run.
type RunSummary struct {
	Jobs      int
	Completed int
	Partial   int
	Failed    int
	Skipped   int // already archived per the index
	Pages     int
}

// Run processes every queue entry in queue order. Entries whose URL is
// already indexed are removed without a new job. Store-level failures
// abort the run; job-level failures are recorded and the run continues.
func (c *Crawler) Run(ctx context.Context) (RunSummary, error) {
	var summary RunSummary

	queue, err := c.store.Queue()
	if err != nil {
		return summary, fmt.Errorf("load queue: %w", err)
	}

	for _, entry := range queue {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		indexed, err := c.store.IsIndexed(entry.URL)
		if err != nil {
			return summary, err
		}
		if indexed {
			c.logger.Info("already archived, dropping queue entry", "url", entry.URL)
			if err := c.store.RemoveFromQueue(entry.URL); err != nil {
				return summary, err
			}
			summary.Skipped++
			continue
		}

		summary.Jobs++
		result, err := c.runJob(ctx, entry)
		if err != nil && !errors.Is(err, ErrSeedFetch) {
			return summary, err
		}

		summary.Pages += result.PagesFetched
		switch result.Status {
		case state.StatusCompleted:
			summary.Completed++
		case state.StatusPartial:
			summary.Partial++
		case state.StatusFailed:
			summary.Failed++
		}
	}

	c.logger.Info("queue run complete",
		"jobs", summary.Jobs,
		"completed", summary.Completed,
		"partial", summary.Partial,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"pages", summary.Pages,
	)
	return summary, nil
}

// runJob executes one crawl job and persists its result entry. The
// returned error is ErrSeedFetch when the initial URL failed, or a
// store/filesystem error that must abort the run.
func (c *Crawler) runJob(ctx context.Context, entry state.QueueEntry) (state.Result, error) {
	result := state.Result{
		RecordID:  entry.RecordID,
		URL:       entry.URL,
		Mode:      entry.Mode,
		FetchedAt: time.Now().UTC(),
	}

	c.logger.Info("job starting",
		"record", entry.RecordID,
		"url", entry.URL,
		"mode", entry.Mode,
		"max_depth", entry.MaxDepth,
	)

	slugDir, err := c.catalog.SlugDir(entry.RecordID)
	if err != nil {
		// A queue entry for an unknown record cannot produce artifacts;
		// treat it like a seed failure so the entry stays for repair.
		result.Status = state.StatusFailed
		result.Errors = append(result.Errors, err.Error())
		if appendErr := c.store.AppendResult(result); appendErr != nil {
			return result, appendErr
		}
		return result, ErrSeedFetch
	}

	scope, err := urlutil.NewScope(entry.URL)
	if err != nil {
		result.Status = state.StatusFailed
		result.Errors = append(result.Errors, fmt.Sprintf("invalid seed URL: %v", err))
		if appendErr := c.store.AppendResult(result); appendErr != nil {
			return result, appendErr
		}
		return result, ErrSeedFetch
	}

	job := newJob(entry)
	seedFailed := false

	for {
		item, ok := job.next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		page, err := c.fetchOne(ctx, item.url)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("fetch %s: %v", item.url, err))
			if item.depth == 0 && result.PagesFetched == 0 && item.url == job.seed {
				seedFailed = true
			}
			continue
		}

		location, links, err := c.persistPage(page, item.url, slugDir, scope)
		if err != nil {
			return result, err
		}

		result.PagesFetched++
		result.FilesCreated = append(result.FilesCreated, location)
		result.VisitedURLs = append(result.VisitedURLs, item.url)

		// Out-of-scope links are durable before the next fetch starts.
		if err := c.recordDiscovered(entry.RecordID, item.url, links); err != nil {
			return result, err
		}

		if entry.Mode == state.ModeRecursive && item.depth < entry.MaxDepth {
			for _, link := range links.InScope {
				job.schedule(link, item.depth+1)
			}
		}
	}

	switch {
	case seedFailed:
		result.Status = state.StatusFailed
	case len(result.Errors) > 0:
		result.Status = state.StatusPartial
	default:
		result.Status = state.StatusCompleted
	}

	if err := c.store.AppendResult(result); err != nil {
		return result, fmt.Errorf("append result: %w", err)
	}

	if result.Status == state.StatusFailed {
		c.logger.Warn("job failed, queue entry retained", "url", entry.URL)
		return result, ErrSeedFetch
	}

	if err := c.store.MergeIndex(state.IndexEntry{
		URL:       entry.URL,
		RecordID:  entry.RecordID,
		FetchedAt: result.FetchedAt,
		Location:  scrapedDir(slugDir),
		PageCount: result.PagesFetched,
	}); err != nil {
		return result, fmt.Errorf("merge index: %w", err)
	}
	if err := c.store.RemoveFromQueue(entry.URL); err != nil {
		return result, fmt.Errorf("remove queue entry: %w", err)
	}

	c.logger.Info("job finished",
		"url", entry.URL,
		"status", result.Status,
		"pages", result.PagesFetched,
		"errors", len(result.Errors),
	)
	return result, nil
}

// fetchOne fetches a URL and then waits the configured delay, pacing
// the whole job regardless of outcome.
func (c *Crawler) fetchOne(ctx context.Context, url string) (*fetcher.Page, error) {
	page, err := c.fetcher.Fetch(ctx, url)
	c.pause(ctx)
	return page, err
}

func (c *Crawler) pause(ctx context.Context) {
	if c.delay <= 0 {
		return
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// persistPage stores page content and companion metadata, returning the
// content file location (relative to the root dir) and the page's
// classified links. Link extraction failure is not fatal: the content
// is kept verbatim with a note in the metadata.
func (c *Crawler) persistPage(page *fetcher.Page, pageURL, slugDir string, scope urlutil.Scope) (string, extract.Links, error) {
	var links extract.Links
	title := ""
	note := ""

	if page.IsHTML() {
		var err error
		links, err = extract.FromHTML(page.Body, pageURL, scope, c.engine)
		if err != nil {
			note = fmt.Sprintf("markup parse failed: %v", err)
			c.logger.Warn("storing page without link extraction", "url", pageURL, "error", err)
		}
		title = extract.Title(page.Body, pageURL)
	} else {
		title = extract.Title(nil, pageURL)
	}

	location, err := writePage(c.rootDir, slugDir, pageURL, page, title, note)
	if err != nil {
		return "", links, fmt.Errorf("persist %s: %w", pageURL, err)
	}

	c.logger.Debug("page stored", "url", pageURL, "file", location)
	return location, links, nil
}

// recordDiscovered appends external and social links to the
// discovered-link set with provenance. In-scope links belong to the
// frontier, not the link set.
func (c *Crawler) recordDiscovered(recordID int, sourceURL string, links extract.Links) error {
	now := time.Now().UTC()
	var out []state.DiscoveredLink
	for _, u := range links.External {
		out = append(out, state.DiscoveredLink{
			URL:          u,
			SourceURL:    sourceURL,
			RecordID:     recordID,
			Categories:   c.engine.Classify(u).Categories,
			DiscoveredAt: now,
		})
	}
	for _, u := range links.Social {
		out = append(out, state.DiscoveredLink{
			URL:          u,
			SourceURL:    sourceURL,
			RecordID:     recordID,
			Categories:   c.engine.Classify(u).Categories,
			DiscoveredAt: now,
		})
	}
	if len(out) == 0 {
		return nil
	}
	_, err := c.store.AddLinks(out...)
	if err != nil {
		return fmt.Errorf("record discovered links: %w", err)
	}
	return nil
}

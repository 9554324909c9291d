// Package suggest generates candidate URLs for review from two
// sources: catalog record fields and links discovered by earlier
// crawls. A URL is suggested only if its normalized form is absent from
// the queue, index, ignore list, pending suggestions, and recorded
// references — so running the generator twice without a state change
// adds nothing.
package suggest

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/opengov-watch/bounty-archiver/internal/catalog"
	"github.com/opengov-watch/bounty-archiver/internal/config"
	"github.com/opengov-watch/bounty-archiver/internal/rules"
	"github.com/opengov-watch/bounty-archiver/internal/state"
	"github.com/opengov-watch/bounty-archiver/internal/urlutil"
)

// Generator scans candidate sources and emits new suggestions.
type Generator struct {
	store    *state.Store
	engine   *rules.Engine
	defaults config.DefaultsConfig
	logger   *slog.Logger
}

// Stats summarizes one generator run.
type Stats struct {
	RecordsScanned   int
	URLsFound        int
	AlreadyProcessed int
	Ignored          int
	NewSuggestions   int
}

// New creates a suggestion generator.
func New(store *state.Store, engine *rules.Engine, defaults config.DefaultsConfig, logger *slog.Logger) *Generator {
	return &Generator{
		store:    store,
		engine:   engine,
		defaults: defaults,
		logger:   logger.With("component", "suggest"),
	}
}

// Run scans the catalog and the discovered-link set, persisting any new
// suggestions. Safe to re-run: unchanged state yields zero additions.
func (g *Generator) Run(cat *catalog.Catalog) (Stats, error) {
	var stats Stats

	known, err := g.store.KnownURLs()
	if err != nil {
		return stats, fmt.Errorf("load processed URLs: %w", err)
	}

	var pending []state.Suggestion
	consider := func(recordID int, rawURL, source string, discoveredCategories []string) error {
		stats.URLsFound++

		norm, err := urlutil.Normalize(rawURL)
		if err != nil {
			g.logger.Warn("skipping unparseable URL", "url", rawURL, "source", source)
			return nil
		}
		if _, seen := known[norm]; seen {
			stats.AlreadyProcessed++
			return nil
		}
		ignored, _, err := g.store.IsIgnored(norm)
		if err != nil {
			return err
		}

		cls := g.engine.Classify(norm)
		if ignored || cls.Route == rules.RouteIgnored {
			stats.Ignored++
			return nil
		}

		categories := cls.Categories
		if len(discoveredCategories) > 0 {
			categories = discoveredCategories
		}

		mode, depth := g.defaults.ModeDepth()
		// Keep the source spelling: a trailing slash widens or narrows
		// the crawl scope derived from it later.
		sg := state.Suggestion{
			RecordID:   recordID,
			URL:        strings.TrimSpace(rawURL),
			Mode:       state.Mode(mode),
			MaxDepth:   depth,
			Source:     source,
			Categories: categories,
			Type:       typeForRoute(cls.Route),
		}

		known[norm] = struct{}{}
		pending = append(pending, sg)
		stats.NewSuggestions++
		return nil
	}

	for _, rec := range cat.Records() {
		stats.RecordsScanned++
		for _, cand := range rec.CandidateURLs() {
			if err := consider(rec.ID, cand.URL, cand.Source, nil); err != nil {
				return stats, err
			}
		}
	}

	links, err := g.store.Links()
	if err != nil {
		return stats, fmt.Errorf("load discovered links: %w", err)
	}
	for _, link := range links {
		source := "discovered from " + link.SourceURL
		if err := consider(link.RecordID, link.URL, source, link.Categories); err != nil {
			return stats, err
		}
	}

	if len(pending) > 0 {
		added, err := g.store.AddSuggestions(pending...)
		if err != nil {
			return stats, fmt.Errorf("save suggestions: %w", err)
		}
		stats.NewSuggestions = added
	}

	g.logger.Info("suggestion run complete",
		"records", stats.RecordsScanned,
		"urls", stats.URLsFound,
		"already_processed", stats.AlreadyProcessed,
		"ignored", stats.Ignored,
		"new", stats.NewSuggestions,
	)
	return stats, nil
}

func typeForRoute(r rules.Route) state.SuggestionType {
	switch r {
	case rules.RouteSocial:
		return state.TypeSocial
	case rules.RouteReference:
		return state.TypeAssociated
	default:
		return state.TypeArchive
	}
}

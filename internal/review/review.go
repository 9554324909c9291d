// Package review routes pending suggestions into their destination
// collections. Each suggestion ends up in exactly one of: the crawl
// queue (archive class), the reference sink (associated/social), or the
// ignore list — or it stays pending (skip, quit, or a later session).
package review

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opengov-watch/bounty-archiver/internal/config"
	"github.com/opengov-watch/bounty-archiver/internal/state"
	"github.com/opengov-watch/bounty-archiver/internal/urlutil"
)

// Decision is the reviewer's verdict on one suggestion.
type Decision int

const (
	Accept Decision = iota
	Modify
	Ignore
	Skip
	Quit
)

// Verdict carries a decision plus its parameters.
type Verdict struct {
	Decision Decision
	Modified state.Suggestion // used when Decision == Modify
	Reason   string           // used when Decision == Ignore
}

// Decider supplies decisions for suggestions that are not auto-accepted.
// The interactive prompt implements it; tests use scripted deciders.
type Decider interface {
	Decide(sg state.Suggestion, position, total int) (Verdict, error)
}

// Summary reports the outcome of one review session.
type Summary struct {
	Accepted   int
	Modified   int
	Ignored    int
	References int
	Remaining  int
}

// Gate applies auto-accept rules and delegated decisions.
type Gate struct {
	store   *state.Store
	cfg     config.ReviewConfig
	decider Decider
	logger  *slog.Logger
}

// New creates a review gate.
func New(store *state.Store, cfg config.ReviewConfig, decider Decider, logger *slog.Logger) *Gate {
	return &Gate{store: store, cfg: cfg, decider: decider, logger: logger.With("component", "review")}
}

// Run processes all pending suggestions. Quit preserves the suggestion
// under evaluation and everything after it; the pending set is
// rewritten once at the end so an interrupted session loses nothing.
func (g *Gate) Run() (Summary, error) {
	var summary Summary

	suggestions, err := g.store.Suggestions()
	if err != nil {
		return summary, fmt.Errorf("load suggestions: %w", err)
	}
	if len(suggestions) == 0 {
		return summary, nil
	}

	var remaining []state.Suggestion
	for i, sg := range suggestions {
		if g.autoAccepts(sg) {
			if err := g.accept(sg, &summary); err != nil {
				return summary, err
			}
			g.logger.Info("auto-accepted", "url", sg.URL, "record", sg.RecordID)
			continue
		}

		verdict, err := g.decider.Decide(sg, i+1, len(suggestions))
		if err != nil {
			// Losing the current suggestion on a decider failure would
			// drop it from every collection; keep it pending instead.
			remaining = append(remaining, suggestions[i:]...)
			summary.Remaining = len(remaining)
			if replaceErr := g.store.ReplaceSuggestions(remaining); replaceErr != nil {
				return summary, errors.Join(err, replaceErr)
			}
			return summary, err
		}

		switch verdict.Decision {
		case Accept:
			if err := g.accept(sg, &summary); err != nil {
				return summary, err
			}
		case Modify:
			modified := verdict.Modified
			if err := g.accept(modified, &summary); err != nil {
				return summary, err
			}
			summary.Modified++
		case Ignore:
			if err := g.store.AddToIgnore(state.IgnoreEntry{Pattern: sg.URL, Reason: verdict.Reason}); err != nil {
				return summary, fmt.Errorf("add to ignore list: %w", err)
			}
			summary.Ignored++
		case Skip:
			remaining = append(remaining, sg)
		case Quit:
			remaining = append(remaining, suggestions[i:]...)
			summary.Remaining = len(remaining)
			return summary, g.store.ReplaceSuggestions(remaining)
		default:
			return summary, fmt.Errorf("unknown decision %d", verdict.Decision)
		}
	}

	summary.Remaining = len(remaining)
	return summary, g.store.ReplaceSuggestions(remaining)
}

// accept routes a suggestion by its type: archive to the queue,
// associated/social to the reference sink. Queue insertion dedups on
// normalized URL, so two suggestions for the same page collapse to one
// entry.
func (g *Gate) accept(sg state.Suggestion, summary *Summary) error {
	switch sg.Type {
	case state.TypeAssociated, state.TypeSocial:
		err := g.store.AddReference(state.Reference{
			RecordID:   sg.RecordID,
			URL:        sg.URL,
			Categories: sg.Categories,
			Type:       sg.Type,
		})
		if err != nil {
			return fmt.Errorf("record reference: %w", err)
		}
		summary.References++
		return nil
	default:
		entry := state.QueueEntry{
			RecordID: sg.RecordID,
			URL:      sg.URL,
			Mode:     sg.Mode,
			MaxDepth: sg.MaxDepth,
			Source:   sg.Source,
		}
		if entry.Mode == state.ModeSingle {
			entry.MaxDepth = 0
		}
		if _, err := g.store.AddToQueue(entry); err != nil {
			return fmt.Errorf("add to queue: %w", err)
		}
		summary.Accepted++
		return nil
	}
}

// autoAccepts reports whether a suggestion matches an auto-accept
// domain rule. Only archive-class suggestions qualify; reference and
// social links always go through the decider.
func (g *Gate) autoAccepts(sg state.Suggestion) bool {
	if sg.Type != state.TypeArchive {
		return false
	}
	domain := urlutil.Host(sg.URL)
	for _, rule := range g.cfg.AutoAccept {
		rule = strings.ToLower(strings.TrimSpace(rule))
		if rule == "" {
			continue
		}
		if domain == rule || strings.HasSuffix(domain, "."+rule) {
			return true
		}
	}
	return false
}

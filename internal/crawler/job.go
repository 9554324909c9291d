package crawler

import (
	"github.com/opengov-watch/bounty-archiver/internal/state"
	"github.com/opengov-watch/bounty-archiver/internal/urlutil"
)

// frontierItem is one pending fetch in a job.
type frontierItem struct {
	url   string
	depth int
}

// job holds the ephemeral crawl state for one queue entry: a FIFO
// frontier (breadth-first by depth, insertion order within a level) and
// the visited set of normalized URLs. Both die with the job; the index
// handles cross-job dedup.
type job struct {
	seed     string
	maxDepth int
	frontier []frontierItem
	visited  map[string]struct{}
}

func newJob(entry state.QueueEntry) *job {
	seed := urlutil.MustNormalize(entry.URL)
	return &job{
		seed:     seed,
		maxDepth: entry.MaxDepth,
		frontier: []frontierItem{{url: seed, depth: 0}},
		visited:  make(map[string]struct{}),
	}
}

// next pops the first frontier entry not yet visited, marking it
// visited. A URL reachable by several discovery paths is fetched once.
func (j *job) next() (frontierItem, bool) {
	for len(j.frontier) > 0 {
		item := j.frontier[0]
		j.frontier = j.frontier[1:]

		if _, seen := j.visited[item.url]; seen {
			continue
		}
		j.visited[item.url] = struct{}{}
		return item, true
	}
	return frontierItem{}, false
}

// schedule queues a URL for fetching at the given depth. URLs beyond
// the depth bound or already visited never enter the frontier.
func (j *job) schedule(rawURL string, depth int) {
	if depth > j.maxDepth {
		return
	}
	norm := urlutil.MustNormalize(rawURL)
	if _, seen := j.visited[norm]; seen {
		return
	}
	j.frontier = append(j.frontier, frontierItem{url: norm, depth: depth})
}

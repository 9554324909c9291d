package state

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestQueueDedupOnNormalizedURL(t *testing.T) {
	s := newTestStore(t)

	added, err := s.AddToQueue(QueueEntry{RecordID: 1, URL: "https://x.com/a", Mode: ModeSingle})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	// Same page, trailing slash: collapses to the existing entry.
	added, err = s.AddToQueue(QueueEntry{RecordID: 1, URL: "https://x.com/a/", Mode: ModeSingle})
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	queue, err := s.Queue()
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "https://x.com/a", queue[0].URL)
}

func TestQueueValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddToQueue(QueueEntry{RecordID: 0, URL: "https://x.com/a", Mode: ModeSingle})
	assert.Error(t, err)
	_, err = s.AddToQueue(QueueEntry{RecordID: 1, URL: "https://x.com/a", Mode: "walk"})
	assert.Error(t, err)
	_, err = s.AddToQueue(QueueEntry{RecordID: 1, URL: "https://x.com/a", Mode: ModeRecursive, MaxDepth: 10})
	assert.Error(t, err)
}

func TestQueuePreservesOrder(t *testing.T) {
	s := newTestStore(t)

	for _, u := range []string{"https://a.com/", "https://b.com/", "https://c.com/"} {
		_, err := s.AddToQueue(QueueEntry{RecordID: 1, URL: u, Mode: ModeSingle})
		require.NoError(t, err)
	}
	require.NoError(t, s.RemoveFromQueue("https://b.com/"))

	queue, err := s.Queue()
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "https://a.com/", queue[0].URL)
	assert.Equal(t, "https://c.com/", queue[1].URL)
}

func TestIndexMergeAndLookup(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.MergeIndex(IndexEntry{URL: "https://use.ink/ubator/", RecordID: 4, PageCount: 3}))

	// Lookup uses the normalized form regardless of input spelling.
	indexed, err := s.IsIndexed("https://USE.INK/ubator")
	require.NoError(t, err)
	assert.True(t, indexed)

	indexed, err = s.IsIndexed("https://use.ink/other")
	require.NoError(t, err)
	assert.False(t, indexed)

	// Merging the same URL updates in place.
	require.NoError(t, s.MergeIndex(IndexEntry{URL: "https://use.ink/ubator", RecordID: 4, PageCount: 5}))
	index, err := s.Index()
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, 5, index[0].PageCount)
}

func TestRemoveFromIndex(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.MergeIndex(IndexEntry{URL: "https://a.com/", RecordID: 1}))
	require.NoError(t, s.MergeIndex(IndexEntry{URL: "https://b.com/", RecordID: 1}))
	require.NoError(t, s.MergeIndex(IndexEntry{URL: "https://c.com/", RecordID: 2}))

	n, err := s.RemoveFromIndex("https://a.com", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.RemoveFromIndex("", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	index, err := s.Index()
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, 2, index[0].RecordID)
}

func TestIgnoreMatching(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddToIgnore(IgnoreEntry{Pattern: "https://example.com/pricing", Reason: "marketing"}))
	require.NoError(t, s.AddToIgnore(IgnoreEntry{Pattern: "youtube.com"}))
	require.NoError(t, s.AddToIgnore(IgnoreEntry{Pattern: "https://spam.io/"}))

	cases := []struct {
		url  string
		want bool
	}{
		{"https://example.com/pricing", true},
		{"https://example.com/pricing/", true}, // same page after normalization
		{"https://example.com/docs", false},
		{"https://youtube.com/watch?v=1", true},
		{"https://www.youtube.com/watch?v=1", true}, // subdomain of ignored domain
		{"https://notyoutube.com/x", false},
		{"https://spam.io/anything", true}, // whole-site URL pattern
	}
	for _, tc := range cases {
		got, _, err := s.IsIgnored(tc.url)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.url)
	}
}

func TestIgnoreDedup(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddToIgnore(IgnoreEntry{Pattern: "youtube.com"}))
	require.NoError(t, s.AddToIgnore(IgnoreEntry{Pattern: "youtube.com/"}))

	list, err := s.IgnoreList()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSuggestionsDedupAndReplace(t *testing.T) {
	s := newTestStore(t)

	added, err := s.AddSuggestions(
		Suggestion{RecordID: 1, URL: "https://docs.a.com/", Type: TypeArchive},
		Suggestion{RecordID: 1, URL: "https://docs.a.com", Type: TypeArchive},
		Suggestion{RecordID: 2, URL: "https://docs.b.com/", Type: TypeArchive},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	require.NoError(t, s.ReplaceSuggestions(nil))
	pending, err := s.Suggestions()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLinksDedupOnURLSourcePair(t *testing.T) {
	s := newTestStore(t)

	added, err := s.AddLinks(
		DiscoveredLink{URL: "https://ext.com/x", SourceURL: "https://a.com/1", RecordID: 1},
		DiscoveredLink{URL: "https://ext.com/x", SourceURL: "https://a.com/2", RecordID: 1},
		DiscoveredLink{URL: "https://ext.com/x/", SourceURL: "https://a.com/1", RecordID: 1},
	)
	require.NoError(t, err)
	// Same link from a different page keeps its provenance; the
	// unnormalized duplicate does not.
	assert.Equal(t, 2, added)
}

func TestReferencesDedupPerRecord(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddReference(Reference{RecordID: 1, URL: "https://github.com/org/repo", Type: TypeAssociated}))
	require.NoError(t, s.AddReference(Reference{RecordID: 1, URL: "https://github.com/org/repo/", Type: TypeAssociated}))
	require.NoError(t, s.AddReference(Reference{RecordID: 2, URL: "https://github.com/org/repo", Type: TypeAssociated}))

	refs, err := s.References()
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestResultsAppendOnly(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendResult(Result{RecordID: 1, URL: "https://a.com/", Status: StatusFailed}))
	require.NoError(t, s.AppendResult(Result{RecordID: 1, URL: "https://a.com/", Status: StatusCompleted}))

	results, err := s.Results()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, StatusCompleted, results[1].Status)
}

func TestResetKeepsQueueAndIgnore(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddToQueue(QueueEntry{RecordID: 1, URL: "https://a.com/", Mode: ModeSingle})
	require.NoError(t, err)
	require.NoError(t, s.AddToIgnore(IgnoreEntry{Pattern: "youtube.com"}))
	require.NoError(t, s.MergeIndex(IndexEntry{URL: "https://b.com/", RecordID: 1}))
	require.NoError(t, s.AppendResult(Result{RecordID: 1, URL: "https://b.com/", Status: StatusCompleted}))
	_, err = s.AddLinks(DiscoveredLink{URL: "https://ext.com/", SourceURL: "https://b.com/", RecordID: 1})
	require.NoError(t, err)
	_, err = s.AddSuggestions(Suggestion{RecordID: 1, URL: "https://c.com/", Type: TypeArchive})
	require.NoError(t, err)
	require.NoError(t, s.AddReference(Reference{RecordID: 1, URL: "https://d.com/", Type: TypeAssociated}))

	require.NoError(t, s.Reset())

	queue, err := s.Queue()
	require.NoError(t, err)
	assert.Len(t, queue, 1)
	ignore, err := s.IgnoreList()
	require.NoError(t, err)
	assert.Len(t, ignore, 1)

	for name, load := range map[string]func() (int, error){
		"index":       func() (int, error) { v, err := s.Index(); return len(v), err },
		"results":     func() (int, error) { v, err := s.Results(); return len(v), err },
		"links":       func() (int, error) { v, err := s.Links(); return len(v), err },
		"suggestions": func() (int, error) { v, err := s.Suggestions(); return len(v), err },
		"references":  func() (int, error) { v, err := s.References(); return len(v), err },
	} {
		n, err := load()
		require.NoError(t, err, name)
		assert.Zero(t, n, name)
	}
}

func TestKnownURLs(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddToQueue(QueueEntry{RecordID: 1, URL: "https://a.com/", Mode: ModeSingle})
	require.NoError(t, err)
	require.NoError(t, s.MergeIndex(IndexEntry{URL: "https://b.com/", RecordID: 1}))
	_, err = s.AddSuggestions(Suggestion{RecordID: 1, URL: "https://c.com/", Type: TypeArchive})
	require.NoError(t, err)
	require.NoError(t, s.AddReference(Reference{RecordID: 1, URL: "https://d.com/", Type: TypeAssociated}))

	known, err := s.KnownURLs()
	require.NoError(t, err)
	assert.Len(t, known, 4)
	for _, u := range []string{"https://a.com/", "https://b.com/", "https://c.com/", "https://d.com/"} {
		assert.Contains(t, known, u)
	}
}

func TestCorruptCollection(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "queue.yml"), []byte("entries: [not: {valid"), 0o644))

	_, err = s.Queue()
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestAtomicSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = s.AddToQueue(QueueEntry{RecordID: 1, URL: "https://a.com/", Mode: ModeSingle})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"queue.yml"}, names)
}

func TestCollectStats(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.MergeIndex(IndexEntry{URL: "https://a.com/", RecordID: 1}))
	require.NoError(t, s.MergeIndex(IndexEntry{URL: "https://b.com/", RecordID: 1}))
	require.NoError(t, s.MergeIndex(IndexEntry{URL: "https://c.com/", RecordID: 2}))
	_, err := s.AddToQueue(QueueEntry{RecordID: 3, URL: "https://d.com/", Mode: ModeSingle})
	require.NoError(t, err)

	st, err := s.CollectStats()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Index)
	assert.Equal(t, 1, st.Queue)
	assert.Equal(t, 2, st.ByRecord[1])
	assert.Equal(t, 1, st.ByRecord[2])
}

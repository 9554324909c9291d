package siteindex

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, root string, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestBuild(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bounties/4-inkubator/scraped/use.ink/ubator.html", "<html/>")
	writeFile(t, root, "bounties/4-inkubator/scraped/use.ink/ubator.html.meta.yml",
		"url: https://use.ink/ubator\ntitle: Inkubator\nfetched_at: 2026-08-01T10:00:00Z\n")
	writeFile(t, root, "bounties/4-inkubator/scraped/use.ink/ubator/apply.html", "<html/>")
	writeFile(t, root, "bounties/4-inkubator/scraped/forms.example.com/apply.html", "<html/>")
	// Record with no scraped content is omitted.
	writeFile(t, root, "bounties/7-quiet/metadata.yml", "links: {}\n")

	idx, err := Build(root, discard())
	require.NoError(t, err)

	assert.Equal(t, 1, idx.RecordCount)
	assert.Equal(t, 2, idx.TotalDomains)
	assert.Equal(t, 3, idx.TotalFiles)

	rec, ok := idx.Records["4"]
	require.True(t, ok)
	require.Len(t, rec.Domains, 2)
	assert.Equal(t, "forms.example.com", rec.Domains[0].Domain)
	assert.Equal(t, "use.ink", rec.Domains[1].Domain)

	useInk := rec.Domains[1]
	require.Len(t, useInk.Files, 2)
	assert.Equal(t, "ubator.html", useInk.Files[0].Path)
	assert.Equal(t, "Inkubator", useInk.Files[0].Title)
	assert.Equal(t, "https://use.ink/ubator", useInk.Files[0].URL)
	assert.Equal(t, "2026-08-01T10:00:00Z", useInk.Files[0].FetchedAt)
	// Metadata companions never appear as files of their own.
	assert.Equal(t, "ubator/apply.html", useInk.Files[1].Path)
	assert.Empty(t, useInk.Files[1].Title)
}

func TestBuildEmptyCatalog(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bounties"), 0o755))

	idx, err := Build(root, discard())
	require.NoError(t, err)
	assert.Zero(t, idx.RecordCount)
	assert.Empty(t, idx.Records)
}

func TestWriteRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bounties/4-inkubator/scraped/use.ink/ubator.html", "<html/>")

	idx, err := Build(root, discard())
	require.NoError(t, err)

	out := filepath.Join(root, "scraped-index.json")
	require.NoError(t, Write(idx, out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var decoded Index
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, idx.RecordCount, decoded.RecordCount)
	assert.Contains(t, decoded.Records, "4")

	// No stray temp files from the atomic replace.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

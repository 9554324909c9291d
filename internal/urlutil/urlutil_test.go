package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://Example.COM/Path", "https://example.com/Path"},
		{"https://example.com/path/", "https://example.com/path"},
		{"https://example.com/path#section", "https://example.com/path"},
		{"https://example.com:443/path", "https://example.com/path"},
		{"http://example.com:80/path", "http://example.com/path"},
		{"https://example.com:8443/path", "https://example.com:8443/path"},
		{"https://example.com", "https://example.com/"},
		{"https://example.com/", "https://example.com/"},
		{"https://example.com/?b=2&a=1", "https://example.com/?a=1&b=2"},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	urls := []string{
		"https://Example.com/Docs/?z=1&a=2#top",
		"http://example.com:80/a/b/",
		"https://use.ink/ubator/",
	}
	for _, u := range urls {
		once, err := Normalize(u)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, u)
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	for _, u := range []string{
		"mailto:team@example.com",
		"javascript:void(0)",
		"ftp://example.com/file",
		"not a url at all ://",
		"/relative/path",
	} {
		_, err := Normalize(u)
		assert.ErrorIs(t, err, ErrInvalidURL, u)
	}
}

func TestNewScope(t *testing.T) {
	cases := []struct {
		in       string
		wantHost string
		wantBase string
	}{
		{"https://use.ink/ubator/apply", "use.ink", "/ubator"},
		{"https://use.ink/ubator/", "use.ink", "/ubator"},
		{"https://use.ink/ubator", "use.ink", ""},
		{"https://docs.example.com/", "docs.example.com", ""},
		{"https://docs.example.com", "docs.example.com", ""},
		{"https://example.com/a/b/c.html", "example.com", "/a/b"},
	}
	for _, tc := range cases {
		scope, err := NewScope(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.wantHost, scope.Host, tc.in)
		assert.Equal(t, tc.wantBase, scope.BasePath, tc.in)
	}
}

func TestScopeContains(t *testing.T) {
	scope, err := NewScope("https://use.ink/ubator/")
	require.NoError(t, err)

	assert.True(t, scope.Contains("https://use.ink/ubator"))
	assert.True(t, scope.Contains("https://use.ink/ubator/apply"))
	assert.True(t, scope.Contains("https://use.ink/ubator/faq/details"))
	assert.False(t, scope.Contains("https://use.ink/docs"))
	assert.False(t, scope.Contains("https://other.host/ubator/apply"))

	root, err := NewScope("https://example.com/")
	require.NoError(t, err)
	assert.True(t, root.Contains("https://example.com/anything"))
	assert.False(t, root.Contains("https://sub.example.com/anything"))
}

func TestResolve(t *testing.T) {
	page := "https://use.ink/ubator/index.html"

	got, err := Resolve(page, "apply")
	require.NoError(t, err)
	assert.Equal(t, "https://use.ink/ubator/apply", got)

	got, err = Resolve(page, "/faq/")
	require.NoError(t, err)
	assert.Equal(t, "https://use.ink/faq", got)

	got, err = Resolve(page, "https://twitter.com/inkubator")
	require.NoError(t, err)
	assert.Equal(t, "https://twitter.com/inkubator", got)

	_, err = Resolve(page, "mailto:hi@use.ink")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestHost(t *testing.T) {
	assert.Equal(t, "example.com", Host("https://Example.com:8080/x"))
	assert.Equal(t, "", Host("://bad"))
}

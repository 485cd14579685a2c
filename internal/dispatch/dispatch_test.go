package dispatch

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spiderd/internal/fetch"
)

func TestGenericScraper_ExtractsAndCleans(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<meta property="og:title" content="Hello">
			<script type="application/ld+json">{"a":1}</script>
		</head><body>
			<script>alert(1)</script>
			<p>hello world, a long enough body for the small-body check to pass</p>
			<a href="/markets/some-story-with-a-slug-long-enough-to-pass-the-length-check-123456">a story</a>
		</body></html>`))
	}))
	defer srv.Close()

	s := NewGenericScraper(fetch.NewDirectClient(5 * time.Second))
	result, err := s.Scrape(t.Context(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Hello", result.MetaTags["og:title"])
	assert.Contains(t, result.JSONLDBlocks, `{"a":1}`)
	assert.NotContains(t, result.CleanedHTML, "alert(1)")
	assert.NotEmpty(t, result.ArticleLinks)
	assert.Equal(t, 200, result.StatusCode)
}

func TestRegistry_DispatchesByHostAndFallsBackToGeneric(t *testing.T) {
	fetcher := fetch.NewDirectClient(5 * time.Second)
	reg := NewRegistry(NewGenericScraper(fetcher))

	custom := NewGenericScraper(fetcher)
	reg.Register("www.example.com", custom)

	s, err := reg.ScraperFor("https://example.com/a")
	require.NoError(t, err)
	assert.Same(t, custom, s)

	s, err = reg.ScraperFor("https://www.example.com/a")
	require.NoError(t, err)
	assert.Same(t, custom, s)

	s, err = reg.ScraperFor("https://unregistered.test/a")
	require.NoError(t, err)
	assert.NotSame(t, custom, s)
}

func TestRegisterDefaults_MergesResolvedLinksForNDTV(t *testing.T) {
	fetcher := fetch.NewDirectClient(5 * time.Second)
	reg := RegisterDefaults(fetcher)

	s, err := reg.ScraperFor("https://www.ndtvprofit.com/markets/story")
	require.NoError(t, err)

	gs, ok := s.(*GenericScraper)
	require.True(t, ok)
	assert.True(t, gs.MergeResolvedLinks)
}

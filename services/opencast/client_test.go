package opencast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchResult = `<search-results total="42" limit="20" offset="0">
  <result>
    <mediapackage xmlns="http://mediapackage.opencastproject.org" id="mp-1">
      <media>
        <track id="track-1" type="presenter/delivery">
          <url>http://src/a</url>
        </track>
      </media>
    </mediapackage>
  </result>
</search-results>`

func TestUniqueMediapackage(t *testing.T) {
	var gotRequest *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequest = r
		fmt.Fprint(w, searchResult)
	}))
	defer server.Close()

	c := NewClient(server.URL, "admin", "opencast")
	mp, err := c.UniqueMediapackage(context.Background(), SearchService, "mp-1")
	require.NoError(t, err)
	assert.Equal(t, "mp-1", mp.ID)

	require.NotNil(t, gotRequest)
	assert.Equal(t, "/search/episode.xml", gotRequest.URL.Path)
	assert.Equal(t, "mp-1", gotRequest.URL.Query().Get("id"))
	assert.Equal(t, "Digest", gotRequest.Header.Get("X-Requested-Auth"))
	assert.Equal(t, "true", gotRequest.Header.Get("X-Opencast-Matterhorn-Authorization"))
}

func TestUniqueMediapackageNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<search-results total="0"/>`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "admin", "opencast")
	_, err := c.UniqueMediapackage(context.Background(), SearchService, "mp-404")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUniqueMediapackageTooManyMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<search-results total="2">
  <result><mediapackage xmlns="http://mediapackage.opencastproject.org" id="mp-1"/></result>
  <result><mediapackage xmlns="http://mediapackage.opencastproject.org" id="mp-1"/></result>
</search-results>`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "admin", "opencast")
	_, err := c.UniqueMediapackage(context.Background(), SearchService, "mp-1")
	assert.True(t, errors.Is(err, ErrTooManyMatches))
}

func TestMediapackagesFromSeries(t *testing.T) {
	var gotRequest *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequest = r
		fmt.Fprint(w, searchResult)
	}))
	defer server.Close()

	c := NewClient(server.URL, "admin", "opencast")
	page, err := c.MediapackagesFromSeries(context.Background(), ArchiveService, "series-1", 40, 0)
	require.NoError(t, err)

	assert.Len(t, page.Mediapackages, 1)
	assert.Equal(t, 42, page.Total)

	require.NotNil(t, gotRequest)
	assert.Equal(t, "/archive/episode.xml", gotRequest.URL.Path)
	assert.Equal(t, "series-1", gotRequest.URL.Query().Get("series"))
	assert.Equal(t, "40", gotRequest.URL.Query().Get("offset"))
	// A non-positive limit falls back to the default page size.
	assert.Equal(t, "20", gotRequest.URL.Query().Get("limit"))
}

func TestSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/series/series-1.xml":
			fmt.Fprint(w, `<dublincore xmlns="http://www.opencastproject.org/xsd/1.0/dublincore/"/>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, "admin", "opencast")

	data, err := c.Series(context.Background(), "series-1")
	require.NoError(t, err)
	assert.Contains(t, string(data), "dublincore")

	_, err = c.Series(context.Background(), "series-404")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSeriesExistsCaches(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := NewClient(server.URL, "admin", "opencast")

	for i := 0; i < 3; i++ {
		exists, err := c.SeriesExists(context.Background(), "series-1")
		require.NoError(t, err)
		assert.False(t, exists)
	}
	assert.Equal(t, 1, requests)
}

func TestCreateSeries(t *testing.T) {
	var gotSeries, gotACL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotSeries = r.PostFormValue("series")
		gotACL = r.PostFormValue("acl")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c := NewClient(server.URL, "admin", "opencast")
	err := c.CreateSeries(context.Background(), "series-1", []byte("<dublincore/>"), []byte("<acl/>"))
	require.NoError(t, err)
	assert.Equal(t, "<dublincore/>", gotSeries)
	assert.Equal(t, "<acl/>", gotACL)

	// Creation marks the series as existing without another lookup.
	exists, err := c.SeriesExists(context.Background(), "series-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

package mediapackage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestXML = `<?xml version="1.0" encoding="UTF-8"?>
<mediapackage xmlns="http://mediapackage.opencastproject.org" id="mp-1" start="2014-05-13T09:00:00Z" duration="3600000">
  <title>Sample lecture</title>
  <series>series-1</series>
  <media>
    <track id="track-1" type="presenter/delivery">
      <mimetype>video/mp4</mimetype>
      <tags>
        <tag>engage-download</tag>
        <tag>high-quality</tag>
      </tags>
      <url>http://engage.example.com/static/engage-player/mp-1/track-1/video.mp4</url>
    </track>
    <track id="track-2" type="presenter/delivery" transport="STREAMING">
      <tags>
        <tag>low-quality</tag>
      </tags>
      <url>http://wowza.example.com/vod/smil:video.smil/playlist.m3u8</url>
    </track>
  </media>
  <metadata>
    <catalog id="catalog-1" type="dublincore/episode">
      <mimetype>text/xml</mimetype>
      <url>http://engage.example.com/static/engage-player/mp-1/catalog-1/dublincore.xml</url>
    </catalog>
    <catalog id="catalog-2" type="security/xacml+series">
      <url>http://engage.example.com/static/engage-player/mp-1/catalog-2/xacml.xml</url>
    </catalog>
  </metadata>
  <attachments>
    <attachment id="attachment-1" type="presenter/player+preview">
      <url>http://engage.example.com/static/engage-player/mp-1/attachment-1/coverimage.png</url>
    </attachment>
  </attachments>
  <publications>
    <publication id="pub-1" type="engage-player">
      <url>http://engage.example.com/play/mp-1</url>
    </publication>
  </publications>
</mediapackage>`

func TestParse(t *testing.T) {
	mp, err := Parse([]byte(manifestXML))
	require.NoError(t, err)

	assert.Equal(t, "mp-1", mp.ID)
	assert.Equal(t, "Sample lecture", mp.Title)
	assert.Equal(t, "series-1", mp.Series)
	require.NotNil(t, mp.Media)
	require.Len(t, mp.Media.Tracks, 2)
	assert.Equal(t, "presenter/delivery", mp.Media.Tracks[0].Flavor)
	assert.Equal(t, "STREAMING", mp.Media.Tracks[1].Transport)
	assert.True(t, mp.Media.Tracks[0].HasTag("engage-download"))
	assert.False(t, mp.Media.Tracks[0].HasTag("engage-streaming"))
	require.NotNil(t, mp.Metadata)
	assert.Len(t, mp.Metadata.Catalogs, 2)
	require.NotNil(t, mp.Publications)
	assert.Len(t, mp.Publications.Publications, 1)
}

func TestParseNotMediapackage(t *testing.T) {
	_, err := Parse([]byte("<not-a-mediapackage/>"))
	assert.Error(t, err)
}

func TestParseAll(t *testing.T) {
	wrapper := `<?xml version="1.0" encoding="UTF-8"?>
<search-results xmlns="http://search.opencastproject.org" total="2" limit="20" offset="0">
  <result id="mp-1">
    <mediapackage xmlns="http://mediapackage.opencastproject.org" id="mp-1"/>
  </result>
  <result id="mp-2">
    <mediapackage xmlns="http://mediapackage.opencastproject.org" id="mp-2"/>
  </result>
</search-results>`

	mps, err := ParseAll([]byte(wrapper))
	require.NoError(t, err)
	require.Len(t, mps, 2)
	assert.Equal(t, "mp-1", mps[0].ID)
	assert.Equal(t, "mp-2", mps[1].ID)
}

func TestParseAllEmpty(t *testing.T) {
	mps, err := ParseAll([]byte(`<search-results total="0"/>`))
	require.NoError(t, err)
	assert.Empty(t, mps)
}

func TestManifestRoundTrip(t *testing.T) {
	mp, err := Parse([]byte(manifestXML))
	require.NoError(t, err)

	data, err := mp.Manifest()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, mp.ID, again.ID)
	assert.Len(t, again.Media.Tracks, 2)
	assert.Equal(t, mp.Media.Tracks[0].URL, again.Media.Tracks[0].URL)
}

func TestMapElements(t *testing.T) {
	mp, err := Parse([]byte(manifestXML))
	require.NoError(t, err)

	mapped := mp.MapElements(func(el Element) (Element, bool) {
		if el.Flavor == "security/xacml+series" {
			return el, false
		}
		el.URL = "rewritten"
		return el, true
	})

	require.Len(t, mapped.Metadata.Catalogs, 1)
	assert.Equal(t, "rewritten", mapped.Media.Tracks[0].URL)

	// The original tree is untouched.
	assert.Len(t, mp.Metadata.Catalogs, 2)
	assert.NotEqual(t, "rewritten", mp.Media.Tracks[0].URL)
}

func TestStripPublications(t *testing.T) {
	mp, err := Parse([]byte(manifestXML))
	require.NoError(t, err)

	stripped := mp.StripPublications()
	assert.Nil(t, stripped.Publications)
	assert.NotNil(t, mp.Publications)
}

func TestAppendTracks(t *testing.T) {
	mp, err := Parse([]byte(manifestXML))
	require.NoError(t, err)

	appended := mp.AppendTracks(Element{ID: "track-3"}, Element{ID: "track-4"})
	require.Len(t, appended.Media.Tracks, 4)
	assert.Equal(t, "track-3", appended.Media.Tracks[2].ID)
	assert.Len(t, mp.Media.Tracks, 2)
}

func TestWithTags(t *testing.T) {
	el := Element{Tags: &Tags{Tags: []string{"a", "b"}}}

	assert.Equal(t, []string{"c"}, el.WithTags([]string{"c"}).TagList())
	assert.Nil(t, el.WithTags(nil).Tags)
	assert.Equal(t, []string{"a", "b"}, el.TagList())
}

func TestQualityTags(t *testing.T) {
	mp, err := Parse([]byte(manifestXML))
	require.NoError(t, err)

	// Reverse-lexicographic, so "low" sorts before "high".
	assert.Equal(t, []string{"low-quality", "high-quality"}, mp.QualityTags())
}

func TestIsQualityTag(t *testing.T) {
	assert.True(t, IsQualityTag("high-quality"))
	assert.False(t, IsQualityTag("engage-download"))
	assert.False(t, IsQualityTag("quality"))
}

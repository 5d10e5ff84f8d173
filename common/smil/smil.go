package smil

import (
	"encoding/xml"
	"os"
	"sort"

	"github.com/ansel1/merry/v2"
)

// Extension of adaptive streaming descriptor files.
const Extension = ".smil"

// Tag is the stream-format tag that marks descriptor URLs.
const Tag = "smil"

type Smil struct {
	XMLName xml.Name `xml:"smil"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

type Head struct {
	Meta Meta `xml:"meta"`
}

type Meta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type Body struct {
	Switch Switch `xml:"switch"`
}

type Switch struct {
	Videos []Video `xml:"video"`
}

// Video is one encoded rendition of the logical video the descriptor
// represents.
type Video struct {
	Src          string `xml:"src,attr"`
	VideoBitrate int    `xml:"video-bitrate,attr"`
	IncludeAudio string `xml:"includeAudio,attr,omitempty"`
}

func Parse(data []byte) (Smil, error) {
	var doc Smil
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Smil{}, merry.Wrap(err)
	}
	return doc, nil
}

func ParseFile(path string) (Smil, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Smil{}, merry.Wrap(err)
	}
	return Parse(data)
}

// VideosByBitrate returns the renditions sorted by bitrate, descending.
func (s Smil) VideosByBitrate() []Video {
	videos := append([]Video(nil), s.Body.Switch.Videos...)
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].VideoBitrate > videos[j].VideoBitrate
	})
	return videos
}

package mediapackage

import (
	"bytes"
	"encoding/xml"
	"io"
	"sort"
	"strings"

	"github.com/ansel1/merry/v2"
	mapset "github.com/deckarep/golang-set/v2"
)

// Namespace is the XML namespace of Opencast mediapackage documents.
const Namespace = "http://mediapackage.opencastproject.org"

// QualityTagSuffix marks element tags that encode a video quality,
// e.g. "high-quality".
const QualityTagSuffix = "-quality"

// Mediapackage is one recording: a bundle of tracks, catalogs and
// attachments, each referencing a single resource URL.
type Mediapackage struct {
	XMLName  xml.Name `xml:"http://mediapackage.opencastproject.org mediapackage"`
	ID       string   `xml:"id,attr,omitempty"`
	Start    string   `xml:"start,attr,omitempty"`
	Duration string   `xml:"duration,attr,omitempty"`

	Title       string `xml:"title,omitempty"`
	Series      string `xml:"series,omitempty"`
	SeriesTitle string `xml:"seriestitle,omitempty"`

	Media        *Media        `xml:"media,omitempty"`
	Metadata     *Metadata     `xml:"metadata,omitempty"`
	Attachments  *Attachments  `xml:"attachments,omitempty"`
	Publications *Publications `xml:"publications,omitempty"`
}

type Media struct {
	Tracks []Element `xml:"track"`
}

type Metadata struct {
	Catalogs []Element `xml:"catalog"`
}

type Attachments struct {
	Attachments []Element `xml:"attachment"`
}

type Publications struct {
	Publications []Element `xml:"publication"`
}

// Element is a single mediapackage member. Every element carries exactly
// one URL; the flavor is stored in the "type" attribute.
type Element struct {
	ID        string    `xml:"id,attr,omitempty"`
	Flavor    string    `xml:"type,attr,omitempty"`
	Ref       string    `xml:"ref,attr,omitempty"`
	Transport string    `xml:"transport,attr,omitempty"`
	MimeType  string    `xml:"mimetype,omitempty"`
	Tags      *Tags     `xml:"tags,omitempty"`
	URL       string    `xml:"url"`
	Checksum  *Checksum `xml:"checksum,omitempty"`
	Size      int64     `xml:"size,omitempty"`
	DurationM int64     `xml:"duration,omitempty"`
}

type Tags struct {
	Tags []string `xml:"tag"`
}

type Checksum struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

func (e Element) HasTag(tag string) bool {
	if e.Tags == nil {
		return false
	}
	for _, t := range e.Tags.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TagList returns the element tags as a plain slice, never nil.
func (e Element) TagList() []string {
	if e.Tags == nil {
		return nil
	}
	return e.Tags.Tags
}

// WithTags returns a copy of the element carrying exactly the given tags.
func (e Element) WithTags(tags []string) Element {
	if len(tags) == 0 {
		e.Tags = nil
		return e
	}
	e.Tags = &Tags{Tags: tags}
	return e
}

// Parse decodes a single mediapackage document.
func Parse(data []byte) (Mediapackage, error) {
	var mp Mediapackage
	if err := xml.Unmarshal(data, &mp); err != nil {
		return Mediapackage{}, merry.Wrap(err)
	}
	return mp, nil
}

// ParseAll extracts every mediapackage from an arbitrary wrapper document
// (search results, episode lists). The wrapper schema differs between the
// search and archive endpoints, so the decoder just scans for mediapackage
// start elements wherever they appear.
func ParseAll(data []byte) ([]Mediapackage, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []Mediapackage
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, merry.Wrap(err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "mediapackage" {
			continue
		}
		var mp Mediapackage
		if err := dec.DecodeElement(&mp, &start); err != nil {
			return nil, merry.Wrap(err)
		}
		out = append(out, mp)
	}
}

// Manifest serializes the mediapackage as an indented, namespace-qualified
// XML document with declaration, suitable for writing as manifest.xml.
func (mp Mediapackage) Manifest() ([]byte, error) {
	body, err := xml.MarshalIndent(mp, "", "  ")
	if err != nil {
		return nil, merry.Wrap(err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// MapFunc rewrites one element during a rebuild pass. Returning false
// drops the element from the result.
type MapFunc func(el Element) (Element, bool)

// MapElements rebuilds all categories by applying f to every element.
// The receiver is not modified; filtering never mutates a tree that is
// being iterated.
func (mp Mediapackage) MapElements(f MapFunc) Mediapackage {
	mapCategory := func(elements []Element) []Element {
		var out []Element
		for _, el := range elements {
			if mapped, keep := f(el); keep {
				out = append(out, mapped)
			}
		}
		return out
	}
	if mp.Media != nil {
		mp.Media = &Media{Tracks: mapCategory(mp.Media.Tracks)}
	}
	if mp.Metadata != nil {
		mp.Metadata = &Metadata{Catalogs: mapCategory(mp.Metadata.Catalogs)}
	}
	if mp.Attachments != nil {
		mp.Attachments = &Attachments{Attachments: mapCategory(mp.Attachments.Attachments)}
	}
	if mp.Publications != nil {
		mp.Publications = &Publications{Publications: mapCategory(mp.Publications.Publications)}
	}
	return mp
}

// Elements returns all elements across categories, publications included.
func (mp Mediapackage) Elements() []Element {
	var out []Element
	if mp.Media != nil {
		out = append(out, mp.Media.Tracks...)
	}
	if mp.Metadata != nil {
		out = append(out, mp.Metadata.Catalogs...)
	}
	if mp.Attachments != nil {
		out = append(out, mp.Attachments.Attachments...)
	}
	if mp.Publications != nil {
		out = append(out, mp.Publications.Publications...)
	}
	return out
}

// AppendTracks returns a copy with the given tracks added to the media
// category.
func (mp Mediapackage) AppendTracks(tracks ...Element) Mediapackage {
	if len(tracks) == 0 {
		return mp
	}
	media := Media{}
	if mp.Media != nil {
		media.Tracks = append(media.Tracks, mp.Media.Tracks...)
	}
	media.Tracks = append(media.Tracks, tracks...)
	mp.Media = &media
	return mp
}

// StripPublications returns a copy without the publications category.
// Published elements cannot be ingested again.
func (mp Mediapackage) StripPublications() Mediapackage {
	mp.Publications = nil
	return mp
}

func IsQualityTag(tag string) bool {
	return strings.HasSuffix(tag, QualityTagSuffix)
}

// QualityTags collects all quality tags found anywhere in the mediapackage,
// sorted from highest to lowest quality.
func (mp Mediapackage) QualityTags() []string {
	tags := mapset.NewSet[string]()
	for _, el := range mp.Elements() {
		for _, tag := range el.TagList() {
			if IsQualityTag(tag) {
				tags.Add(tag)
			}
		}
	}
	out := tags.ToSlice()
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

package export

import (
	"mime"
	upath "path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/bcc-code/opencast-migrate/common/smil"
	"github.com/bcc-code/opencast-migrate/mediapackage"
)

// flattenDescriptor reads an adaptive streaming descriptor and synthesizes
// one track element per encoded rendition, in descending bitrate order.
// The descriptor element serves as the template for the new tracks, since
// it carries the shared attributes such as the flavor.
//
// When qualityTags is not empty, rendition i receives the tag at position
// i and renditions beyond the tag list are discarded. Duplicate renditions
// are skipped without consuming a tag.
func (e *Exporter) flattenDescriptor(
	mpID string,
	descriptor mediapackage.Element,
	descriptorPath string,
	qualityTags []string,
	reg *registry,
) []mediapackage.Element {
	doc, err := smil.ParseFile(descriptorPath)
	if err != nil {
		log.Warn().Str("mediapackage", mpID).Str("path", descriptorPath).Err(err).
			Msg("could not parse stream descriptor")
		return nil
	}
	log.Debug().Str("mediapackage", mpID).Str("path", descriptorPath).
		Msg("flattening stream descriptor")

	template := descriptor
	// The transport attribute belongs to the streaming element only.
	template.Transport = ""
	// Pre-existing quality tags would clash with the ones assigned below.
	template = template.WithTags(lo.Reject(template.TagList(), func(tag string, _ int) bool {
		return lo.Contains(qualityTags, tag)
	}))

	videos := doc.VideosByBitrate()

	var tracks []mediapackage.Element
	tagIndex := 0
	for i, video := range videos {
		if len(qualityTags) > 0 && tagIndex >= len(qualityTags) {
			log.Warn().Str("mediapackage", mpID).Str("path", descriptorPath).
				Int("discarded", len(videos)-i).
				Msg("descriptor has more renditions than quality tags, discarding lowest bitrates")
			break
		}

		res, err := e.Resolver.Resolve(video.Src)
		if err != nil {
			log.Warn().Str("mediapackage", mpID).Str("src", video.Src).Err(err).
				Msg("skipping unresolvable rendition")
			continue
		}

		added, err := reg.register(res.Destination, res.Source, descriptor.ID)
		if err != nil || !added {
			log.Warn().Str("mediapackage", mpID).Str("src", video.Src).
				Str("destination", res.Destination).
				Msg("ignoring duplicate rendition in stream descriptor")
			continue
		}

		track := template
		track.URL = res.Destination
		track.ID = trackID(res.Destination)
		// Elements without a declared mimetype stay without one. A
		// failed guess clears the descriptor's value rather than
		// keeping it for a different file.
		if template.MimeType != "" {
			track.MimeType = guessMimeType(res.Destination)
		}
		if len(qualityTags) > 0 {
			track = track.WithTags(append(track.TagList(), qualityTags[tagIndex]))
			log.Debug().Str("mediapackage", mpID).Str("element", track.ID).
				Str("tag", qualityTags[tagIndex]).
				Msg("added quality tag to flattened track")
			tagIndex++
		}

		tracks = append(tracks, track)
	}
	return tracks
}

// trackID derives the element id of a flattened track from the parent
// directory of its destination, which follows the element-id/filename
// layout.
func trackID(dst string) string {
	id := upath.Base(upath.Dir(dst))
	if id == "." || id == "/" {
		return uuid.NewString()
	}
	return id
}

func guessMimeType(dst string) string {
	mt := mime.TypeByExtension(filepath.Ext(dst))
	// Parameters such as charset do not belong in a mediapackage.
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = mt[:idx]
	}
	return strings.TrimSpace(mt)
}

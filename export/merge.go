package export

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/bcc-code/opencast-migrate/mediapackage"
	"github.com/bcc-code/opencast-migrate/services/opencast"
)

// Coordinator consolidates the views that several backends hold of the
// same mediapackage into a single exportable unit. The primary exporter
// is authoritative for existence; secondaries contribute additional
// media and attachment elements.
type Coordinator struct {
	primary     *Exporter
	secondaries []*Exporter
}

func NewCoordinator(primary *Exporter, secondaries ...*Exporter) *Coordinator {
	return &Coordinator{
		primary:     primary,
		secondaries: secondaries,
	}
}

// Export runs the primary exporter for the given mediapackage id and
// merges every secondary result into it. A nil result with nil error
// means the primary backend does not know the mediapackage.
//
// Secondaries run against the id the primary resolved, not the caller
// argument, so id normalization by the backend is carried over.
func (c *Coordinator) Export(ctx context.Context, mpID string, filters Filters) (*Result, error) {
	combined, err := c.primary.ExportID(ctx, mpID, filters)
	if errors.Is(err, opencast.ErrNotFound) || errors.Is(err, opencast.ErrTooManyMatches) {
		log.Debug().Str("mediapackage", mpID).Str("exporter", c.primary.Name).Err(err).
			Msg("primary backend yielded no mediapackage")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, secondary := range c.secondaries {
		res, err := secondary.ExportID(ctx, combined.MP.ID, filters)
		if errors.Is(err, opencast.ErrNotFound) || errors.Is(err, opencast.ErrTooManyMatches) {
			log.Debug().Str("mediapackage", combined.MP.ID).Str("exporter", secondary.Name).Err(err).
				Msg("secondary backend yielded no mediapackage")
			continue
		}
		if err != nil {
			return nil, err
		}

		combined.MP = mergeTrees(combined.MP, res.MP)
		mergePaths(combined.Paths, res.Paths)
	}

	return combined, nil
}

// MediapackagesFromSeries lists one page of the series on the primary
// backend, which is authoritative for what exists.
func (c *Coordinator) MediapackagesFromSeries(ctx context.Context, seriesID string, offset, limit int) (opencast.SeriesPage, error) {
	return c.primary.Client.MediapackagesFromSeries(ctx, c.primary.Service, seriesID, offset, limit)
}

// mergeTrees appends the media and attachment elements of the secondary
// tree to the primary one. Metadata catalogs are not merged; the primary
// view of the metadata wins outright.
func mergeTrees(dst, src mediapackage.Mediapackage) mediapackage.Mediapackage {
	if src.Media != nil && len(src.Media.Tracks) > 0 {
		dst = dst.AppendTracks(src.Media.Tracks...)
	}
	if src.Attachments != nil && len(src.Attachments.Attachments) > 0 {
		attachments := mediapackage.Attachments{}
		if dst.Attachments != nil {
			attachments.Attachments = append(attachments.Attachments, dst.Attachments.Attachments...)
		}
		attachments.Attachments = append(attachments.Attachments, src.Attachments.Attachments...)
		dst.Attachments = &attachments
	}
	return dst
}

// mergePaths folds src into dst with a first-write-wins policy: a
// destination already registered with a different source is kept and the
// conflict is only logged.
func mergePaths(dst, src map[string]string) {
	keys := lo.Keys(src)
	sort.Strings(keys)
	for _, key := range keys {
		if existing, ok := dst[key]; ok && existing != src[key] {
			log.Warn().Str("destination", key).Str("kept", existing).Str("ignored", src[key]).
				Msg("conflicting source paths for duplicate destination, keeping the first one")
			continue
		}
		dst[key] = src[key]
	}
}

package export

import (
	"context"
	upath "path"

	"github.com/ansel1/merry/v2"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog/log"

	"github.com/bcc-code/opencast-migrate/common/smil"
	"github.com/bcc-code/opencast-migrate/mediapackage"
	"github.com/bcc-code/opencast-migrate/paths"
	"github.com/bcc-code/opencast-migrate/services/opencast"
)

var ErrDuplicateElement = merry.Sentinel("element resolves to an already exported destination")

// Filters controls which elements survive an export pass.
type Filters struct {
	// Flavors drops every element whose flavor is in the set.
	Flavors mapset.Set[string]
	// Tags drops every element carrying any tag in the set.
	Tags mapset.Set[string]
	// StripTags removes the listed tags from elements that are kept.
	StripTags mapset.Set[string]
}

func (f Filters) flavors() mapset.Set[string] {
	if f.Flavors == nil {
		return mapset.NewSet[string]()
	}
	return f.Flavors
}

func (f Filters) tags() mapset.Set[string] {
	if f.Tags == nil {
		return mapset.NewSet[string]()
	}
	return f.Tags
}

func (f Filters) stripTags() mapset.Set[string] {
	if f.StripTags == nil {
		return mapset.NewSet[string]()
	}
	return f.StripTags
}

// Result is the outcome of one export pass: the filtered, rewritten
// mediapackage and the map of destination-relative paths to the absolute
// source paths the files must be copied from.
type Result struct {
	MP    mediapackage.Mediapackage
	Paths map[string]string
}

// Exporter exports mediapackages from one backend of an Opencast system.
type Exporter struct {
	// Name identifies the backend in logs.
	Name     string
	Client   *opencast.Client
	Service  opencast.Service
	Resolver paths.Resolver
	// DropDuplicates downgrades duplicate-destination failures to
	// "drop the element and continue".
	DropDuplicates bool

	state State
}

func (e *Exporter) State() State {
	if e.state == (State{}) {
		return StateIdle
	}
	return e.state
}

// ExportID fetches the mediapackage by id and exports it.
func (e *Exporter) ExportID(ctx context.Context, mpID string, filters Filters) (*Result, error) {
	e.state = StateFetching
	mp, err := e.Client.UniqueMediapackage(ctx, e.Service, mpID)
	if err != nil {
		e.state = StateFailed
		return nil, err
	}
	return e.Export(ctx, mp, filters)
}

// Export filters the mediapackage, resolves every remaining element URL
// and accumulates the destination to source path map. Elements whose
// destination carries the descriptor extension are flattened into one
// track per rendition.
func (e *Exporter) Export(ctx context.Context, mp mediapackage.Mediapackage, filters Filters) (*Result, error) {
	e.state = StateFiltering

	// Quality tags must be collected before any elements are dropped.
	qualityTags := mp.QualityTags()

	mp = mp.StripPublications().MapElements(func(el mediapackage.Element) (mediapackage.Element, bool) {
		return e.filterElement(mp.ID, el, filters)
	})

	e.state = StateCopying

	reg := newRegistry()
	var flatTracks []mediapackage.Element
	var exportErr error

	mp = mp.MapElements(func(el mediapackage.Element) (mediapackage.Element, bool) {
		if exportErr != nil {
			return el, true
		}
		if err := ctx.Err(); err != nil {
			exportErr = merry.Wrap(err)
			return el, true
		}

		res, err := e.Resolver.Resolve(el.URL)
		if err != nil {
			exportErr = err
			return el, true
		}

		added, err := reg.register(res.Destination, res.Source, el.ID)
		if err != nil {
			if upath.Ext(res.Destination) == smil.Extension {
				log.Debug().Str("mediapackage", mp.ID).Str("element", el.ID).Err(err).
					Msg("dropping conflicting descriptor element")
				return el, false
			}
			if e.DropDuplicates {
				log.Warn().Str("mediapackage", mp.ID).Str("element", el.ID).Err(err).
					Msg("dropping element with duplicate destination")
				return el, false
			}
			exportErr = err
			return el, true
		}

		if upath.Ext(res.Destination) == smil.Extension {
			if !added {
				// The same descriptor is commonly referenced by
				// several elements. Only the first one is flattened.
				log.Debug().Str("mediapackage", mp.ID).Str("element", el.ID).
					Msg("dropping duplicate descriptor element")
				return el, false
			}
			tracks := e.flattenDescriptor(mp.ID, el, res.Source, qualityTags, reg)
			flatTracks = append(flatTracks, tracks...)
			// The descriptor element itself is replaced by the
			// tracks it references.
			return el, false
		}

		el.URL = res.Destination
		return el, true
	})

	if exportErr != nil {
		e.state = StateFailed
		return nil, exportErr
	}

	mp = mp.AppendTracks(flatTracks...)

	e.state = StateDone
	return &Result{MP: mp, Paths: reg.paths}, nil
}

func (e *Exporter) filterElement(mpID string, el mediapackage.Element, filters Filters) (mediapackage.Element, bool) {
	if el.Flavor != "" && filters.flavors().Contains(el.Flavor) {
		log.Debug().Str("mediapackage", mpID).Str("element", el.ID).Str("flavor", el.Flavor).
			Msg("filtering element because of its flavor")
		return el, false
	}

	var kept []string
	for _, tag := range el.TagList() {
		if filters.tags().Contains(tag) {
			log.Debug().Str("mediapackage", mpID).Str("element", el.ID).Str("tag", tag).
				Msg("filtering element because of its tag")
			return el, false
		}
		if filters.stripTags().Contains(tag) {
			log.Debug().Str("mediapackage", mpID).Str("element", el.ID).Str("tag", tag).
				Msg("stripping tag from element")
			continue
		}
		kept = append(kept, tag)
	}
	return el.WithTags(kept), true
}

// registry accumulates the destination to source path map of one export
// pass and guards against two elements writing the same destination.
type registry struct {
	paths    map[string]string
	exported map[string]string
}

func newRegistry() *registry {
	return &registry{
		paths:    map[string]string{},
		exported: map[string]string{},
	}
}

// register records one destination to source pair. Re-registering the
// same pair is an idempotent no-op reported through added=false; a
// different source for a known destination is a conflict.
func (r *registry) register(dst, src, elementID string) (added bool, err error) {
	if prev, ok := r.paths[dst]; ok {
		if prev == src {
			return false, nil
		}
		return false, merry.Wrap(ErrDuplicateElement,
			merry.AppendMessagef("element %q duplicates destination %q already exported by element %q",
				elementID, dst, r.exported[dst]))
	}
	r.paths[dst] = src
	r.exported[dst] = elementID
	return true, nil
}

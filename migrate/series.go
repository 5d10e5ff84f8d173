package migrate

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ansel1/merry/v2"
	"github.com/rs/zerolog/log"

	"github.com/bcc-code/opencast-migrate/mediapackage"
	"github.com/bcc-code/opencast-migrate/services/opencast"
)

// DublinCoreNamespace is the namespace of the Dublin Core terms used in
// series catalogs.
const DublinCoreNamespace = "http://purl.org/dc/terms/"

// platformRolePattern matches roles that are native to the platform and
// must not be rewritten when migrating ACLs.
var platformRolePattern = regexp.MustCompile(`^(ROLE|[0-9]+)_`)

// PrefixRoleTransform returns a role transform that prepends the given
// prefix to every role that is not a platform role. Actions pass through
// unchanged.
func PrefixRoleTransform(prefix string) mediapackage.RoleTransform {
	return func(role string, actions []mediapackage.Action) (string, []mediapackage.Action) {
		if !platformRolePattern.MatchString(role) {
			return prefix + role, actions
		}
		return role, actions
	}
}

// SeriesMigrator migrates whole series: it mirrors the series definition
// into the destination system, then moves every episode through the
// embedded Migrator.
type SeriesMigrator struct {
	Migrator *Migrator
	// Source is the source system's admin node, which serves the series
	// endpoints.
	Source      *opencast.Client
	Destination *opencast.Client
	// ExportDir is where the per-series working directories are created.
	ExportDir string
	PageSize  int

	DefaultRoles  []mediapackage.RoleActions
	RoleTransform mediapackage.RoleTransform
	// ExtraMetadata is appended to the series catalog before it is
	// created in the destination system, keyed by Dublin Core term.
	ExtraMetadata map[string]string

	// Single stops after the first actually migrated episode. Useful to
	// throttle ingestions when driven by a cronjob.
	Single bool
}

// MigrateSeries mirrors the series into the destination system and
// migrates all its episodes. Episode failures are logged and counted
// rather than aborting the series; the series directory ends up with an
// ingested marker only when every episode made it through.
func (s *SeriesMigrator) MigrateSeries(ctx context.Context, seriesID string) error {
	if _, err := s.Source.Series(ctx, seriesID); err != nil {
		if errors.Is(err, opencast.ErrNotFound) {
			return merry.Wrap(opencast.ErrNotFound,
				merry.AppendMessagef("series %q does not exist in the source system", seriesID))
		}
		return err
	}

	if err := s.ensureSeries(ctx, seriesID); err != nil {
		return err
	}

	seriesDir := filepath.Join(s.ExportDir, seriesID)
	if err := checkMarkers(seriesDir); err != nil {
		return err
	}

	failed, stopped, err := s.migrateEpisodes(ctx, seriesDir, seriesID)
	if err != nil {
		return err
	}
	if stopped {
		// The series stays unmarked so the next run resumes the
		// remaining episodes.
		log.Info().Str("series", seriesID).Msg("stopping after a single migrated episode")
		return nil
	}

	if failed > 0 {
		log.Info().Str("series", seriesID).Int("failed", failed).Msg("marking series as failed")
		if err := markFailed(seriesDir); err != nil {
			return err
		}
		return merry.Errorf("series %q: %d episodes failed to migrate", seriesID, failed)
	}
	log.Info().Str("series", seriesID).Msg("marking series as ingested")
	return markIngested(seriesDir)
}

// migrateEpisodes pages through the series and migrates every episode.
// stopped reports that the Single throttle cut the run short while
// episodes may remain.
func (s *SeriesMigrator) migrateEpisodes(ctx context.Context, seriesDir, seriesID string) (failed int, stopped bool, err error) {
	offset := 0
	for {
		page, err := s.Migrator.Coordinator.MediapackagesFromSeries(ctx, seriesID, offset, s.PageSize)
		if err != nil {
			return failed, false, err
		}
		if len(page.Mediapackages) == 0 {
			return failed, false, nil
		}

		for _, mp := range page.Mediapackages {
			err := s.Migrator.MigrateMediapackage(ctx, seriesDir, mp.ID)
			switch {
			case err == nil:
				if s.Single {
					return failed, true, nil
				}
			case errors.Is(err, ErrAlreadyIngested):
				log.Debug().Str("mediapackage", mp.ID).Msg("already ingested")
			case errors.Is(err, ErrAlreadyFailed):
				log.Debug().Str("mediapackage", mp.ID).Msg("already marked as failed")
				failed++
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return failed, false, err
			default:
				log.Error().Err(err).Str("mediapackage", mp.ID).Msg("episode migration failed")
				failed++
			}
		}

		offset += len(page.Mediapackages)
		// Some backends omit or misreport the result total, so only an
		// empty page terminates the loop.
		if page.Total > 0 && offset > page.Total {
			log.Debug().Str("series", seriesID).Int("total", page.Total).Int("seen", offset).
				Msg("series listing returned more results than the reported total")
		}
	}
}

// ensureSeries creates the series in the destination system when it does
// not exist yet, copying the catalog and the rebuilt ACL from the source
// system.
func (s *SeriesMigrator) ensureSeries(ctx context.Context, seriesID string) error {
	exists, err := s.Destination.SeriesExists(ctx, seriesID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	log.Info().Str("series", seriesID).
		Msg("series does not exist in the destination system, creating it")

	seriesXML, err := s.Source.Series(ctx, seriesID)
	if err != nil {
		return err
	}
	seriesXML, err = appendSeriesMetadata(seriesXML, s.ExtraMetadata)
	if err != nil {
		return err
	}

	aclXML, err := s.Source.SeriesACL(ctx, seriesID)
	if err != nil {
		return err
	}
	acl, err := mediapackage.ParseACL(aclXML)
	if err != nil {
		return err
	}
	aclXML, err = acl.Rebuild(s.DefaultRoles, s.RoleTransform).XML()
	if err != nil {
		return err
	}

	return s.Destination.CreateSeries(ctx, seriesID, seriesXML, aclXML)
}

// appendSeriesMetadata inserts the given Dublin Core terms right before
// the closing tag of the series catalog.
func appendSeriesMetadata(seriesXML []byte, terms map[string]string) ([]byte, error) {
	if len(terms) == 0 {
		return seriesXML, nil
	}
	end := bytes.LastIndex(seriesXML, []byte("</"))
	if end < 0 {
		return nil, merry.New("series catalog has no closing tag")
	}

	keys := make([]string, 0, len(terms))
	for key := range terms {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var extra bytes.Buffer
	for _, key := range keys {
		fmt.Fprintf(&extra, "<extra:%s xmlns:extra=%q>%s</extra:%s>\n",
			key, DublinCoreNamespace, terms[key], key)
	}

	out := make([]byte, 0, len(seriesXML)+extra.Len())
	out = append(out, seriesXML[:end]...)
	out = append(out, extra.Bytes()...)
	out = append(out, seriesXML[end:]...)
	return out, nil
}

// MigrateSeriesList migrates every series listed in the given file, one
// identifier per line. Blank lines and lines starting with '#' are
// skipped; series that were already processed or do not exist are logged
// and skipped.
func (s *SeriesMigrator) MigrateSeriesList(ctx context.Context, listPath string) error {
	f, err := os.Open(listPath)
	if err != nil {
		return merry.Wrap(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return merry.Wrap(err)
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		seriesID := fields[0]

		err := s.MigrateSeries(ctx, seriesID)
		switch {
		case err == nil:
		case errors.Is(err, ErrAlreadyIngested):
			log.Debug().Str("series", seriesID).Msg("already ingested")
		case errors.Is(err, ErrAlreadyFailed):
			log.Debug().Str("series", seriesID).Msg("already marked as failed")
		case errors.Is(err, opencast.ErrNotFound):
			log.Error().Err(err).Str("series", seriesID).Msg("series not found")
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			log.Error().Err(err).Str("series", seriesID).Msg("series migration failed")
		}
	}
	return merry.Wrap(scanner.Err())
}

package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/ansel1/merry/v2"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/bcc-code/opencast-migrate/export"
	"github.com/bcc-code/opencast-migrate/services/opencast"
	"github.com/bcc-code/opencast-migrate/utils"
)

// Migrator moves single mediapackages from the source system into the
// destination system's ingest inbox, leaving marker files behind so
// interrupted runs can be resumed.
type Migrator struct {
	Coordinator *export.Coordinator
	// Destination is queried before exporting, so mediapackages that
	// already made it into the destination archive are not ingested
	// twice.
	Destination        *opencast.Client
	DestinationService opencast.Service
	// InboxDir is the destination system's ingest inbox.
	InboxDir string
	// DeleteIngested removes the exported payload after each attempt,
	// keeping only the marker files.
	DeleteIngested bool
	Filters        export.Filters
}

// MigrateMediapackage exports the mediapackage with the given id into
// rootDir/<id>, packs it and drops it in the ingest inbox. Directories
// already carrying a marker return ErrAlreadyIngested or
// ErrAlreadyFailed; any other failure marks the directory as failed
// before returning.
func (m *Migrator) MigrateMediapackage(ctx context.Context, rootDir, mpID string) error {
	mpDir := filepath.Join(rootDir, mpID)
	if err := checkMarkers(mpDir); err != nil {
		return err
	}
	if err := os.MkdirAll(mpDir, 0755); err != nil {
		return merry.Wrap(err)
	}

	_, err := m.Destination.UniqueMediapackage(ctx, m.DestinationService, mpID)
	switch {
	case err == nil:
		log.Warn().Str("mediapackage", mpID).
			Msg("not marked as ingested, but already archived in the destination system")
		return markIngested(mpDir)
	case errors.Is(err, opencast.ErrNotFound):
		// Expected: the mediapackage still has to be migrated.
	default:
		return err
	}

	err = m.ingest(ctx, mpDir, mpID)
	if m.DeleteIngested {
		if cleanupErr := removePayload(mpDir); cleanupErr != nil && err == nil {
			err = cleanupErr
		}
	}
	if err != nil {
		if markErr := markFailed(mpDir); markErr != nil {
			log.Error().Err(markErr).Str("mediapackage", mpID).
				Msg("could not write failed marker")
		}
		return merry.Wrap(err, merry.AppendMessagef("mediapackage %q", mpID))
	}
	return nil
}

func (m *Migrator) ingest(ctx context.Context, mpDir, mpID string) error {
	res, err := m.Coordinator.Export(ctx, mpID, m.Filters)
	if err != nil {
		return err
	}
	if res == nil {
		return merry.Wrap(opencast.ErrNotFound, merry.AppendMessagef("mediapackage %q", mpID))
	}

	if err := m.copyFiles(ctx, mpDir, res.Paths); err != nil {
		return err
	}

	manifest, err := res.MP.Manifest()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(mpDir, manifestFilename), manifest, 0644); err != nil {
		return merry.Wrap(err)
	}

	zipPath := filepath.Join(mpDir, mpID+".zip")
	if err := zipDirectory(mpDir, zipPath); err != nil {
		return err
	}
	if !isDir(m.InboxDir) {
		return merry.Errorf("the destination inbox %q does not exist", m.InboxDir)
	}
	if err := utils.CopyFile(zipPath, filepath.Join(m.InboxDir, mpID+".zip")); err != nil {
		return err
	}

	log.Info().Str("mediapackage", mpID).Msg("mediapackage successfully ingested")
	return markIngested(mpDir)
}

func (m *Migrator) copyFiles(ctx context.Context, mpDir string, paths map[string]string) error {
	keys := lo.Keys(paths)
	sort.Strings(keys)

	for _, rel := range keys {
		if err := ctx.Err(); err != nil {
			return merry.Wrap(err)
		}
		src := paths[rel]
		dst := filepath.Join(mpDir, filepath.FromSlash(rel))

		if isFile(dst) {
			equal, err := utils.FileContentsEqual(src, dst)
			if err != nil {
				return err
			}
			if equal {
				log.Debug().Str("path", dst).Msg("file was copied in an earlier run")
				continue
			}
		}
		if err := utils.CopyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// removePayload deletes everything below dir except the marker files.
func removePayload(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return merry.Wrap(err)
	}
	for _, entry := range entries {
		if entry.Name() == ingestedMarker || entry.Name() == failedMarker {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return merry.Wrap(err)
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

package migrate

import (
	"os"
	"path/filepath"

	"github.com/ansel1/merry/v2"

	"github.com/bcc-code/opencast-migrate/utils"
)

const (
	ingestedMarker   = ".ingested"
	failedMarker     = ".failed"
	manifestFilename = "manifest.xml"
)

var (
	// ErrAlreadyIngested signals that the directory carries an ingested
	// marker from an earlier run.
	ErrAlreadyIngested = merry.Sentinel("already marked as ingested")
	// ErrAlreadyFailed signals that the directory carries a failed
	// marker from an earlier run.
	ErrAlreadyFailed = merry.Sentinel("already marked as failed")
)

// checkMarkers returns the matching sentinel when dir was already
// processed by an earlier run.
func checkMarkers(dir string) error {
	if isFile(filepath.Join(dir, ingestedMarker)) {
		return merry.Wrap(ErrAlreadyIngested, merry.AppendMessage(dir))
	}
	if isFile(filepath.Join(dir, failedMarker)) {
		return merry.Wrap(ErrAlreadyFailed, merry.AppendMessage(dir))
	}
	return nil
}

func markIngested(dir string) error {
	return utils.Touch(filepath.Join(dir, ingestedMarker))
}

func markFailed(dir string) error {
	return utils.Touch(filepath.Join(dir, failedMarker))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

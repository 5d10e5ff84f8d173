package migrate

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ansel1/merry/v2"
)

// zipDirectory packs the contents of dir into a zip file at zipPath.
// Entries are stored uncompressed, matching what the ingest inbox
// expects, and marker files are left out of the archive.
func zipDirectory(dir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return merry.Wrap(err)
	}
	defer out.Close()

	w := zip.NewWriter(out)

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if name == ingestedMarker || name == failedMarker || strings.HasSuffix(name, ".zip") {
			return nil
		}

		entry, err := w.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Store,
		})
		if err != nil {
			return err
		}
		in, err := os.Open(p)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(entry, in)
		return err
	})
	if err != nil {
		_ = w.Close()
		return merry.Wrap(err)
	}
	if err := w.Close(); err != nil {
		return merry.Wrap(err)
	}
	return merry.Wrap(out.Close())
}

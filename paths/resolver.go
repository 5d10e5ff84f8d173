package paths

import (
	"net/url"
	"os"
	upath "path"
	"path/filepath"

	"github.com/ansel1/merry/v2"

	"github.com/bcc-code/opencast-migrate/common/smil"
)

// ArchiveResolver resolves URLs of archived mediapackage elements.
//
// Archive URLs take the form
//
//	.../{mediapackage-id}/{element-id}/{version}/{filename}.{ext}
//
// where the filename is invented for the URL and does not exist on disk.
// The real file layout under the archive root is
//
//	{mediapackage-id}/{version}/{element-id}.{ext}
//
// The destination mimics the structure of an ingested mediapackage:
//
//	{element-id}/{filename}.{ext}
type ArchiveResolver struct {
	Root string
}

func (r ArchiveResolver) Resolve(rawURL string) (Resolution, error) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Opaque == "" {
		p = u.Path
	}

	ext := upath.Ext(p)
	p = p[:len(p)-len(ext)]
	p, filename := upath.Split(upath.Clean(p))
	p, version := upath.Split(upath.Clean(p))
	p, elementID := upath.Split(upath.Clean(p))
	mpID := lastSegment(p)

	src := filepath.Join(r.Root, mpID, version, elementID+ext)

	if !isRegularFile(src) {
		return Resolution{}, merry.Wrap(ErrMissingElement,
			merry.AppendMessagef("archive path %q for URL path %q", src, rawURL))
	}

	return Resolution{
		Source:      src,
		Destination: filepath.Join(elementID, filename+ext),
	}, nil
}

// PublishedResolver resolves URLs of elements distributed by the search
// service. The storage-root-relative path is tried against every
// configured root in order; the first root containing the file wins.
// When nothing matches and an archive resolver is configured, resolution
// is delegated to it, which covers the rare case of archive paths being
// published without modification.
type PublishedResolver struct {
	SearchRoots []string
	Archive     *ArchiveResolver
}

func (r PublishedResolver) Resolve(rawURL string) (Resolution, error) {
	clean := Clean(rawURL)

	src, err := r.findSource(clean)
	if err != nil {
		if r.Archive != nil && r.Archive.Root != "" {
			return r.Archive.Resolve(clean)
		}
		return Resolution{}, err
	}

	return Resolution{
		Source:      src,
		Destination: destinationFor(clean),
	}, nil
}

func (r PublishedResolver) findSource(rel string) (string, error) {
	for _, root := range r.SearchRoots {
		abs := filepath.Join(root, rel)
		if isRegularFile(abs) {
			// Assume the first match is the right one.
			return abs, nil
		}
	}
	return "", merry.Wrap(ErrMissingElement,
		merry.AppendMessagef("path %q not found under any configured root", rel))
}

// destinationFor keeps descriptor paths unmodified and reduces everything
// else to the two deepest levels, element id and filename.
func destinationFor(rel string) string {
	if upath.Ext(rel) == smil.Extension {
		return rel
	}
	root := upath.Dir(upath.Dir(rel))
	return relativeTo(rel, root)
}

func isRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func lastSegment(p string) string {
	_, last := upath.Split(upath.Clean(p))
	return last
}

package paths

import (
	"net/url"
	upath "path"
	"strings"

	"github.com/ansel1/merry/v2"
	"github.com/rs/zerolog/log"

	"github.com/bcc-code/opencast-migrate/common/smil"
)

var ErrMissingElement = merry.Sentinel("element not found in any storage root")

// Resolution is the outcome of resolving one element URL: the absolute
// path the file can be read from and the path it should be exported to,
// relative to the export root.
type Resolution struct {
	Source      string
	Destination string
}

// Resolver computes source and destination paths for a mediapackage
// element URL. Implementations differ per backend, because the archive
// and search services embed different conventions in their URLs.
type Resolver interface {
	Resolve(rawURL string) (Resolution, error)
}

// splitFormatTag detects a stream-format tag embedded in a URL path,
// e.g. ".../hls:rest/of/path", and returns the tag together with the
// reconstructed path. Tags come immediately after a directory separator,
// or prefix the whole path in relative streaming URLs.
func splitFormatTag(u *url.URL) (tag, p string) {
	// A relative URL starting with a tag parses as scheme:opaque.
	// Server URLs always carry a host alongside the scheme, so a
	// scheme without one is really a format tag.
	if u.Opaque != "" {
		return u.Scheme, u.Opaque
	}

	p = u.Path
	idx := strings.Index(p, ":")
	if idx < 0 {
		return "", p
	}
	prefix, suffix := p[:idx], p[idx+1:]
	dir, tag := upath.Split(prefix)
	return tag, upath.Join(dir, suffix)
}

// Clean strips any stream-format tag from an element URL, restores the
// file extension the streaming format omitted, and removes the server
// mount point, returning the storage-root-relative path of the resource.
//
// Distributed resource URLs take the form
//
//	mountpoint/distribution-channel/mediapackage-id/element-id/filename.ext
//
// so everything above the last four segments belongs to the mount point.
// Descriptor files are the exception: they live directly under the
// service root and keep their path as-is.
func Clean(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		// Not a parsable URL. Treat the whole string as a path.
		u = &url.URL{Path: rawURL}
	}

	tag, p := splitFormatTag(u)

	// A smil tag means the filename in the URL is virtual: the real
	// file is the directory right before it.
	if tag == smil.Tag {
		p = upath.Dir(p)
	}

	ext := upath.Ext(p)
	switch {
	case ext == "" && tag != "":
		// Streaming URL formats omit the extension when it matches
		// the tag.
		ext = "." + tag
		p += ext
	case ext == "" && tag == "":
		log.Warn().Str("url", rawURL).Str("path", p).
			Msg("parsed URL path has no extension")
	case tag != "" && ext != "."+tag:
		log.Warn().Str("path", p).Str("tag", tag).
			Msg("conflicting format tag in path, ignoring the tag")
	}

	root := upath.Dir(p)
	if ext != smil.Extension {
		for i := 0; i < 3; i++ {
			root = upath.Dir(root)
		}
	}
	return relativeTo(upath.Clean(p), root)
}

// relativeTo strips an ancestor prefix obtained via path.Dir.
func relativeTo(p, root string) string {
	if root == "/" || root == "." {
		return strings.TrimPrefix(p, "/")
	}
	return strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
}

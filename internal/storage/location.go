package storage

import (
	"net/url"
	"strings"
)

// NASScheme prefixes every storage path produced by the NAS backend
const NASScheme = "nas://"

// Location is the decoded form of a NAS storage path:
//
//	nas://{bucket}/{file_id}?path={quoted absolute path}
//
// Path, when present, is authoritative. A storage path without the nas://
// prefix is a legacy bare filesystem path and decodes with Legacy set.
type Location struct {
	Bucket string
	FileID string
	Path   string
	Legacy bool
}

// String encodes the location as a storage path
func (l Location) String() string {
	if l.Legacy {
		return l.Path
	}

	var b strings.Builder
	b.WriteString(NASScheme)
	b.WriteString(quote(l.Bucket))
	b.WriteByte('/')
	b.WriteString(quote(l.FileID))
	if l.Path != "" {
		b.WriteString("?path=")
		b.WriteString(quote(l.Path))
	}
	return b.String()
}

// ParseLocation decodes a storage path produced by Location.String, or a
// legacy bare path.
func ParseLocation(storagePath string) (Location, error) {
	if !strings.HasPrefix(storagePath, NASScheme) {
		if storagePath == "" {
			return Location{}, errorf(ErrValidation, nil, "empty storage path")
		}
		return Location{Path: storagePath, Legacy: true}, nil
	}

	rest := strings.TrimPrefix(storagePath, NASScheme)
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	body, rawQuery, _ := strings.Cut(rest, "?")

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Location{}, errorf(ErrValidation, err, "malformed storage path %q", storagePath)
	}

	var loc Location
	if bucket, fileID, ok := strings.Cut(strings.Trim(body, "/"), "/"); ok {
		if loc.Bucket, err = url.PathUnescape(bucket); err != nil {
			return Location{}, errorf(ErrValidation, err, "malformed bucket in storage path %q", storagePath)
		}
		if loc.FileID, err = url.PathUnescape(fileID); err != nil {
			return Location{}, errorf(ErrValidation, err, "malformed file id in storage path %q", storagePath)
		}
	}

	loc.Path = query.Get("path")
	if loc.Path == "" && (loc.Bucket == "" || loc.FileID == "") {
		return Location{}, errorf(ErrValidation, nil, "storage path %q names neither a path nor a bucket and file id", storagePath)
	}

	return loc, nil
}

// quote percent-encodes every byte except unreserved characters and '/'
func quote(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if keepUnquoted(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func keepUnquoted(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '_', c == '.', c == '-', c == '~', c == '/':
		return true
	}
	return false
}

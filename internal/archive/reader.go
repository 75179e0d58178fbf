package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"

	perrors "pkgforge/internal/errors"
	"pkgforge/internal/manifest"
)

// Entry describes one payload file of a package archive.
type Entry struct {
	Path  string // rooted install path
	Size  int64
	Mode  int64
	Uid   int
	Gid   int
	Uname string
	Gname string
}

// Archive is a parsed package archive: the embedded metadata and manifest
// plus the payload entry listing. Payload contents are not extracted.
type Archive struct {
	Path        string
	Compression Compression
	Metadata    Metadata
	Manifest    manifest.Manifest
	Payload     []Entry
}

// Read parses a package archive.
func Read(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perrors.Newf(perrors.ErrArchive, "", "opening archive: %w", err)
	}
	defer f.Close()

	rc, comp, err := Decompress(f, path)
	if err != nil {
		return nil, perrors.Newf(perrors.ErrArchive, "", "%w", err)
	}
	defer rc.Close()

	a := &Archive{Path: path, Compression: comp}
	var sawMetadata, sawManifest bool

	tr := tar.NewReader(rc)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, perrors.Newf(perrors.ErrArchive, "", "corrupt archive: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		switch header.Name {
		case MetadataMember:
			body, err := io.ReadAll(tr)
			if err != nil {
				return nil, perrors.Newf(perrors.ErrArchive, "", "reading metadata member: %w", err)
			}
			if err := toml.Unmarshal(body, &a.Metadata); err != nil {
				return nil, perrors.Newf(perrors.ErrArchive, "", "decoding metadata member: %w", err)
			}
			sawMetadata = true
		case ManifestMember:
			body, err := io.ReadAll(tr)
			if err != nil {
				return nil, perrors.Newf(perrors.ErrArchive, "", "reading manifest member: %w", err)
			}
			m, err := manifest.Parse(bytes.NewReader(body), "")
			if err != nil {
				return nil, err
			}
			a.Manifest = m
			sawManifest = true
		default:
			a.Payload = append(a.Payload, Entry{
				Path:  "/" + header.Name,
				Size:  header.Size,
				Mode:  header.Mode,
				Uid:   header.Uid,
				Gid:   header.Gid,
				Uname: header.Uname,
				Gname: header.Gname,
			})
		}
	}

	if !sawMetadata {
		return nil, perrors.Newf(perrors.ErrArchive, "", "%s has no metadata member", path)
	}
	if !sawManifest {
		return nil, perrors.Newf(perrors.ErrArchive, "", "%s has no manifest member", path)
	}
	return a, nil
}

// VerifyReport lists the disagreements between an archive's manifest member
// and its payload.
type VerifyReport struct {
	MissingPayload []string // listed in the manifest, no payload entry
	Unlisted       []string // payload entry, absent from the manifest
}

// OK reports whether the manifest and payload agree exactly.
func (r VerifyReport) OK() bool {
	return len(r.MissingPayload) == 0 && len(r.Unlisted) == 0
}

// Verify replays the manifest round trip against the shipped artifact:
// every manifest entry must have a payload entry and vice versa.
func (a *Archive) Verify() VerifyReport {
	inPayload := make(map[string]bool, len(a.Payload))
	for _, e := range a.Payload {
		inPayload[e.Path] = true
	}
	listed := make(map[string]bool, len(a.Manifest))
	for _, p := range a.Manifest {
		listed[p] = true
	}

	var report VerifyReport
	for _, p := range a.Manifest {
		if !inPayload[p] {
			report.MissingPayload = append(report.MissingPayload, p)
		}
	}
	for _, e := range a.Payload {
		if !listed[e.Path] {
			report.Unlisted = append(report.Unlisted, e.Path)
		}
	}
	sort.Strings(report.MissingPayload)
	sort.Strings(report.Unlisted)
	return report
}

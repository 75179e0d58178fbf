package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"

	perrors "pkgforge/internal/errors"
	"pkgforge/internal/manifest"
)

// Request describes one package archive to write.
type Request struct {
	Metadata    Metadata
	Manifest    manifest.Manifest
	StagingRoot string
	OutputDir   string
	Compression Compression
}

// FileName returns the archive file name for the request.
func (r Request) FileName() string {
	return fmt.Sprintf("%s.pkg.tar.%s", r.Metadata.Identity(), r.Compression.Ext())
}

// Write builds the package archive: the metadata member, the manifest
// member, then one payload entry per manifest path read from the staging
// root. Every entry is attributed to root:root with the staged file's mode.
// Returns the archive path.
func Write(ctx context.Context, req Request) (string, error) {
	if len(req.Manifest) == 0 {
		return "", perrors.Newf(perrors.ErrArchive, "package", "refusing to package an empty manifest")
	}
	for _, entry := range req.Manifest {
		if strings.HasPrefix(entry, "/.pkgforge/") {
			return "", perrors.Newf(perrors.ErrArchive, "package",
				"manifest entry %s claims the reserved member directory", entry)
		}
	}

	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return "", perrors.Newf(perrors.ErrArchive, "package", "creating output directory: %w", err)
	}
	outPath := filepath.Join(req.OutputDir, req.FileName())

	f, err := os.Create(outPath)
	if err != nil {
		return "", perrors.Newf(perrors.ErrArchive, "package", "creating archive: %w", err)
	}

	if err := writeMembers(ctx, f, req); err != nil {
		f.Close()
		os.Remove(outPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(outPath)
		return "", perrors.Newf(perrors.ErrArchive, "package", "closing archive: %w", err)
	}

	logrus.Infof("Wrote %s (%d files)", outPath, len(req.Manifest))
	return outPath, nil
}

func writeMembers(ctx context.Context, f *os.File, req Request) error {
	cw, err := newWriter(f, req.Compression)
	if err != nil {
		return perrors.Newf(perrors.ErrArchive, "package", "%w", err)
	}
	// The zstd encoder keeps worker goroutines until closed, so failure
	// paths must release the compressor too.
	closed := false
	defer func() {
		if !closed {
			cw.Close()
		}
	}()
	tw := tar.NewWriter(cw)

	now := time.Now()

	metaBody, err := toml.Marshal(req.Metadata)
	if err != nil {
		return perrors.Newf(perrors.ErrArchive, "package", "encoding metadata: %w", err)
	}
	if err := addMember(tw, MetadataMember, metaBody, now); err != nil {
		return perrors.Newf(perrors.ErrArchive, "package", "writing metadata member: %w", err)
	}

	var mb strings.Builder
	for _, entry := range req.Manifest {
		mb.WriteString(entry)
		mb.WriteByte('\n')
	}
	if err := addMember(tw, ManifestMember, []byte(mb.String()), now); err != nil {
		return perrors.Newf(perrors.ErrArchive, "package", "writing manifest member: %w", err)
	}

	for _, entry := range req.Manifest {
		select {
		case <-ctx.Done():
			return perrors.New(perrors.ErrArchive, "package", ctx.Err())
		default:
		}
		if err := addPayload(tw, req.StagingRoot, entry); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return perrors.Newf(perrors.ErrArchive, "package", "closing archive: %w", err)
	}
	closed = true
	if err := cw.Close(); err != nil {
		return perrors.Newf(perrors.ErrArchive, "package", "closing archive: %w", err)
	}
	return nil
}

func addMember(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: modTime,
		Uname:   "root",
		Gname:   "root",
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

func addPayload(tw *tar.Writer, stagingRoot, entry string) error {
	staged := filepath.Join(stagingRoot, filepath.FromSlash(entry))
	info, err := os.Stat(staged)
	if err != nil {
		return perrors.Newf(perrors.ErrArchive, "package", "manifest entry %s is not staged: %w", entry, err)
	}

	header := &tar.Header{
		Name:    strings.TrimPrefix(entry, "/"),
		Mode:    int64(info.Mode().Perm()),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Uname:   "root",
		Gname:   "root",
	}
	if err := tw.WriteHeader(header); err != nil {
		return perrors.Newf(perrors.ErrArchive, "package", "writing %s: %w", entry, err)
	}

	in, err := os.Open(staged)
	if err != nil {
		return perrors.Newf(perrors.ErrArchive, "package", "reading %s: %w", entry, err)
	}
	defer in.Close()
	if _, err := io.Copy(tw, in); err != nil {
		return perrors.Newf(perrors.ErrArchive, "package", "writing %s: %w", entry, err)
	}
	return nil
}

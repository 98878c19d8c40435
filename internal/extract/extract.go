// Package extract inflates submission archives into a working directory.
package extract

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"autojunit/internal/submission"
	appErr "autojunit/pkg/errors"
)

// Supported reports whether the archive at name can be inflated.
// Recognition (submission.IsArchiveName) is wider: .rar and .7z classify
// as archives but have no extractor here.
func Supported(name string) bool {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return true
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return true
	case strings.HasSuffix(lower, ".tar.zst"):
		return true
	}
	return false
}

// Inflate extracts the archive at srcPath into dstDir. Platform metadata
// entries are dropped, entry paths escaping dstDir are rejected.
func Inflate(srcPath, dstDir string) error {
	if srcPath == "" {
		return appErr.ValidationError("src_path", "required")
	}
	if dstDir == "" {
		return appErr.ValidationError("dst_dir", "required")
	}
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return appErr.Wrapf(err, appErr.ExtractionFailed, "create extract dir failed")
	}

	lower := strings.ToLower(srcPath)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return inflateZip(srcPath, dstDir)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return inflateTar(srcPath, dstDir, compressionGzip)
	case strings.HasSuffix(lower, ".tar.zst"):
		return inflateTar(srcPath, dstDir, compressionZstd)
	case submission.IsArchiveName(srcPath):
		return appErr.Newf(appErr.UnsupportedArchive, "no extractor for %s", filepath.Base(srcPath))
	}
	return appErr.Newf(appErr.UnsupportedArchive, "not a recognized archive: %s", filepath.Base(srcPath))
}

func inflateZip(srcPath, dstDir string) error {
	reader, err := zip.OpenReader(srcPath)
	if err != nil {
		return appErr.Wrapf(err, appErr.ArchiveCorrupt, "open zip failed")
	}
	defer reader.Close()
	reader.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	for _, file := range reader.File {
		if skipEntry(file.Name) {
			continue
		}
		target, err := safeTarget(dstDir, file.Name)
		if err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.Wrapf(err, appErr.ExtractionFailed, "create dir failed")
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return appErr.Wrapf(err, appErr.ExtractionFailed, "create parent dir failed")
		}
		src, err := file.Open()
		if err != nil {
			return appErr.Wrapf(err, appErr.ArchiveCorrupt, "open zip entry failed")
		}
		if err := writeEntry(target, src, file.Mode()); err != nil {
			_ = src.Close()
			return err
		}
		_ = src.Close()
	}
	return nil
}

type compression int

const (
	compressionGzip compression = iota
	compressionZstd
)

func inflateTar(srcPath, dstDir string, comp compression) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return appErr.Wrapf(err, appErr.ExtractionFailed, "open archive failed")
	}
	defer file.Close()

	var decompressed io.Reader
	switch comp {
	case compressionGzip:
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return appErr.Wrapf(err, appErr.ArchiveCorrupt, "create gzip reader failed")
		}
		defer gzReader.Close()
		decompressed = gzReader
	case compressionZstd:
		zstdReader, err := zstd.NewReader(file)
		if err != nil {
			return appErr.Wrapf(err, appErr.ArchiveCorrupt, "create zstd reader failed")
		}
		defer zstdReader.Close()
		decompressed = zstdReader
	}

	tr := tar.NewReader(decompressed)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.ArchiveCorrupt, "read tar entry failed")
		}
		if hdr.Name == "" || skipEntry(hdr.Name) {
			continue
		}
		target, err := safeTarget(dstDir, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.Wrapf(err, appErr.ExtractionFailed, "create dir failed")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return appErr.Wrapf(err, appErr.ExtractionFailed, "create parent dir failed")
			}
			if err := writeEntry(target, tr, fs.FileMode(hdr.Mode)); err != nil {
				return err
			}
		default:
			// skip links and special files
		}
	}
	return nil
}

func writeEntry(target string, src io.Reader, mode fs.FileMode) error {
	if mode.Perm() == 0 {
		mode = 0644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return appErr.Wrapf(err, appErr.ExtractionFailed, "create file failed")
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return appErr.Wrapf(err, appErr.ExtractionFailed, "write file failed")
	}
	return dst.Close()
}

// safeTarget resolves an archive entry name below dstDir, rejecting
// absolute paths and traversal escapes.
func safeTarget(dstDir, name string) (string, error) {
	cleanName := filepath.Clean(filepath.FromSlash(name))
	if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
		return "", appErr.Newf(appErr.ArchiveEntryUnsafe, "invalid archive entry path: %s", name)
	}
	target := filepath.Join(dstDir, cleanName)
	if !strings.HasPrefix(target, filepath.Clean(dstDir)+string(filepath.Separator)) {
		return "", appErr.Newf(appErr.ArchiveEntryUnsafe, "archive entry escape detected: %s", name)
	}
	return target, nil
}

// skipEntry drops platform metadata wherever it appears in the entry path.
func skipEntry(name string) bool {
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if submission.IsMetadata(part) {
			return true
		}
	}
	return false
}

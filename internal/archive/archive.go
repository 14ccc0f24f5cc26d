// Package archive packs directory trees into gzip-compressed tarballs and
// unpacks them again. Entries are stored with paths relative to the packed
// directory so an archive restores cleanly into any target directory.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/tmartens/keepsake/internal/errors"
)

// Stats summarizes a pack or unpack run.
type Stats struct {
	// Files is the number of regular files written.
	Files int
	// Bytes is the total size of the regular file contents, uncompressed.
	Bytes int64
}

// Pack walks sourceDir and writes a .tar.gz archive to dstPath. Symlinks are
// preserved as link entries; other non-regular files are skipped.
func Pack(ctx context.Context, sourceDir, dstPath string) (Stats, error) {
	var stats Stats

	info, err := os.Stat(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, errors.NotFound("source directory %s does not exist", sourceDir)
		}
		return stats, errors.Wrapf(err, "stat %s", sourceDir)
	}
	if !info.IsDir() {
		return stats, errors.NotFound("%s is not a directory", sourceDir)
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return stats, errors.Wrapf(err, "creating archive %s", dstPath)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if fi.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		} else if !fi.Mode().IsRegular() && !fi.IsDir() {
			// sockets, devices, fifos: not meaningful in a backup
			return nil
		}

		hdr, err := tar.FileInfoHeader(fi, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if fi.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if fi.Mode().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			n, err := io.Copy(tw, f)
			f.Close()
			if err != nil {
				return err
			}
			stats.Files++
			stats.Bytes += n
		}
		return nil
	})
	if walkErr != nil {
		tw.Close()
		gz.Close()
		return stats, errors.Wrapf(walkErr, "packing %s", sourceDir)
	}

	if err := tw.Close(); err != nil {
		gz.Close()
		return stats, errors.Wrap(err, "finalizing tar stream")
	}
	if err := gz.Close(); err != nil {
		return stats, errors.Wrap(err, "finalizing gzip stream")
	}
	if err := out.Close(); err != nil {
		return stats, errors.Wrapf(err, "closing archive %s", dstPath)
	}
	return stats, nil
}

// Unpack extracts a .tar.gz archive into targetDir, creating it if needed.
// Existing files are overwritten. Entry paths are confined to targetDir:
// absolute or parent-relative names are rejected, and names that traverse an
// extracted symlink are resolved with the symlink re-rooted at targetDir, so
// a tampered archive cannot write outside it.
func Unpack(ctx context.Context, archivePath, targetDir string) (Stats, error) {
	var stats Stats

	in, err := os.Open(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, errors.NotFound("archive %s does not exist", archivePath)
		}
		return stats, errors.Wrapf(err, "opening archive %s", archivePath)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return stats, errors.Wrapf(err, "reading gzip stream from %s", archivePath)
	}
	defer gz.Close()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return stats, errors.Wrapf(err, "creating target directory %s", targetDir)
	}

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, errors.Wrapf(err, "reading tar stream from %s", archivePath)
		}

		dst, err := securePath(targetDir, hdr.Name)
		if err != nil {
			return stats, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dst, fs.FileMode(hdr.Mode)&fs.ModePerm); err != nil {
				return stats, errors.Wrapf(err, "creating directory %s", dst)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return stats, errors.Wrapf(err, "creating directory for %s", dst)
			}
			os.Remove(dst)
			if err := os.Symlink(hdr.Linkname, dst); err != nil {
				return stats, errors.Wrapf(err, "restoring symlink %s", dst)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return stats, errors.Wrapf(err, "creating directory for %s", dst)
			}
			f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fs.FileMode(hdr.Mode)&fs.ModePerm)
			if err != nil {
				return stats, errors.Wrapf(err, "creating file %s", dst)
			}
			n, err := io.Copy(f, tr)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return stats, errors.Wrapf(err, "restoring file %s", dst)
			}
			stats.Files++
			stats.Bytes += n
		}
	}
	return stats, nil
}

// securePath joins name under targetDir and rejects escapes. Joining goes
// through securejoin so that path components pointing at previously extracted
// symlinks resolve inside targetDir instead of following the link out.
func securePath(targetDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) || cleaned == ".." {
		return "", errors.Newf("archive entry %q escapes target directory", name)
	}
	dst, err := securejoin.SecureJoin(targetDir, cleaned)
	if err != nil {
		return "", errors.Wrapf(err, "resolving archive entry %q", name)
	}
	return dst, nil
}

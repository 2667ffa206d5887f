package bundle

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"crusader-launcher/internal/logging"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

type extractor struct {
	dest string
	// realDest is dest with symlinks resolved; on-disk checks compare against it
	realDest string
	matcher  *matcher
	report   *progress
	stats    Stats
}

func (x *extractor) skip(name string) bool {
	ok, pattern := x.matcher.ignored(name)
	if ok {
		logging.Named("bundle").Debugf("Skipping: %s (matched pattern %s)", name, pattern)
		x.stats.Skipped++
	}
	return ok
}

// target maps an archive entry name to a path inside the destination
func (x *extractor) target(name string) (string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.VolumeName(filepath.FromSlash(slashed)) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(x.dest, filepath.FromSlash(slashed))
	if !x.inside(target) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func (x *extractor) inside(path string) bool {
	return within(x.dest, path)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveParent follows symlinks already on disk above target, created by
// earlier entries or a previous install, and returns the real parent
// directory. It fails with ErrUnsafePath when that lies outside the destination.
func (x *extractor) resolveParent(target string) (string, error) {
	dir := filepath.Dir(target)

	// the deepest ancestor that exists; the rest is created later
	existing, missing := dir, ""
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		missing = filepath.Join(filepath.Base(existing), missing)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve %s: %v", ErrUnsafePath, existing, err)
	}
	if !within(x.realDest, resolved) {
		return "", fmt.Errorf("%w: %s resolves outside destination", ErrUnsafePath, target)
	}
	return filepath.Join(resolved, missing), nil
}

// replaceSymlink removes a symlink sitting at target so the entry is written
// in its place instead of through it
func replaceSymlink(target string) error {
	info, err := os.Lstat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", target, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("failed to replace symlink %s: %w", target, err)
	}
	return nil
}

func (x *extractor) writeDir(target string) error {
	if _, err := x.resolveParent(target); err != nil {
		return err
	}
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", target, err)
	}
	return nil
}

func (x *extractor) writeFile(target string, r io.Reader, mode os.FileMode) error {
	parent, err := x.resolveParent(target)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}
	target = filepath.Join(parent, filepath.Base(target))
	if err := replaceSymlink(target); err != nil {
		return err
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm()|0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	buf := bufferPool.Get().([]byte)
	n, err := io.CopyBuffer(out, r, buf)
	bufferPool.Put(buf)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	x.stats.Files++
	x.stats.Bytes += n
	x.report.maybeReport(x.stats.Bytes)
	return nil
}

// writeSymlink only accepts relative links that stay inside the destination,
// e.g. libopenal.so -> libopenal.so.1
func (x *extractor) writeSymlink(target, link string) error {
	if filepath.IsAbs(link) || !x.inside(filepath.Join(filepath.Dir(target), link)) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, target, link)
	}

	// the link is evaluated from where it really lands, not where the entry name says
	parent, err := x.resolveParent(target)
	if err != nil {
		return err
	}
	if !within(x.realDest, filepath.Join(parent, link)) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, target, link)
	}

	if err := os.MkdirAll(parent, 0755); err != nil {
		return err
	}
	target = filepath.Join(parent, filepath.Base(target))
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}
	if err := os.Symlink(link, target); err != nil {
		return fmt.Errorf("failed to create symlink %s: %w", target, err)
	}
	return nil
}

func extractTar(x *extractor, r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		if x.skip(hdr.Name) {
			continue
		}
		target, err := x.target(hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			err = x.writeDir(target)
		case tar.TypeReg:
			err = x.writeFile(target, tr, hdr.FileInfo().Mode())
		case tar.TypeSymlink:
			err = x.writeSymlink(target, hdr.Linkname)
		default:
			logging.Named("bundle").Debugf("Ignoring unsupported tar entry %s (type %c)", hdr.Name, hdr.Typeflag)
		}
		if err != nil {
			return err
		}
	}
}

func extractTarGz(x *extractor, archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open bundle: %w", err)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	return extractTar(x, gz)
}

func extractTarZst(x *extractor, archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open bundle: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	return extractTar(x, zr)
}

func extractZip(x *extractor, archivePath string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open bundle: %w", err)
	}
	defer zr.Close()

	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	zr.RegisterDecompressor(zstd.ZipMethodPKWare, zstd.ZipDecompressor())

	for _, f := range zr.File {
		if x.skip(f.Name) {
			continue
		}
		target, err := x.target(f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			err = x.writeDir(target)
		case mode&os.ModeSymlink != 0:
			err = extractZipSymlink(x, f, target)
		default:
			err = extractZipFile(x, f, target, mode)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(x *extractor, f *zip.File, target string, mode os.FileMode) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	return x.writeFile(target, rc, mode)
}

func extractZipSymlink(x *extractor, f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	link, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return err
	}
	return x.writeSymlink(target, string(link))
}

package bundle

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"crusader-launcher/internal/logging"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

type packWalk struct {
	source  string
	matcher *matcher
	report  *progress
	stats   Stats
}

type packEntry struct {
	path    string
	relPath string
	info    os.FileInfo
	link    string
}

// walk visits every non-ignored entry below the source directory
func (w *packWalk) walk(add func(e packEntry) error) error {
	sugar := logging.Named("bundle")

	return filepath.Walk(w.source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access %s: %w", path, err)
		}

		relPath, err := filepath.Rel(w.source, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}

		if relPath == "." {
			return nil
		}

		if ok, pattern := w.matcher.ignored(relPath); ok {
			sugar.Debugf("Skipping: %s (matched pattern %s)", relPath, pattern)
			w.stats.Skipped++
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		e := packEntry{path: path, relPath: filepath.ToSlash(relPath), info: info}
		if info.Mode()&os.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("failed to read symlink %s: %w", path, err)
			}
			e.link = link
		}

		sugar.Debugf("Including: %s", e.relPath)
		if err := add(e); err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			w.stats.Files++
			w.stats.Bytes += info.Size()
		}
		w.report.maybeReport(w.stats.Bytes)
		return nil
	})
}

func copyFile(dst io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	buf := bufferPool.Get().([]byte)
	defer bufferPool.Put(buf)

	if _, err := io.CopyBuffer(dst, file, buf); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

func writeTar(w *packWalk, out io.Writer) error {
	tarWriter := tar.NewWriter(out)

	err := w.walk(func(e packEntry) error {
		header, err := tar.FileInfoHeader(e.info, e.link)
		if err != nil {
			return fmt.Errorf("failed to create tar header: %w", err)
		}
		header.Name = e.relPath
		if e.info.IsDir() {
			header.Name += "/"
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}

		if e.info.Mode().IsRegular() {
			return copyFile(tarWriter, e.path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return tarWriter.Close()
}

func createTarGz(w *packWalk, archivePath string, level int) (err error) {
	outFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	// parallel gzip across all cores
	gzipWriter, err := pgzip.NewWriterLevel(outFile, level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if err := writeTar(w, gzipWriter); err != nil {
		_ = gzipWriter.Close()
		return err
	}
	return gzipWriter.Close()
}

func createTarZst(w *packWalk, archivePath string, level int) (err error) {
	outFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	zstdWriter, err := zstd.NewWriter(outFile,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(runtime.GOMAXPROCS(0)),
	)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}

	if err := writeTar(w, zstdWriter); err != nil {
		_ = zstdWriter.Close()
		return err
	}
	return zstdWriter.Close()
}

func createZip(w *packWalk, archivePath string, level int) (err error) {
	outFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := outFile.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	zipWriter := zip.NewWriter(outFile)

	method := zip.Store
	if level > 0 {
		method = zstd.ZipMethodWinZip
		zipWriter.RegisterCompressor(method, zstd.ZipCompressor(
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
			zstd.WithEncoderConcurrency(runtime.GOMAXPROCS(0)),
		))
	}

	err = w.walk(func(e packEntry) error {
		header, err := zip.FileInfoHeader(e.info)
		if err != nil {
			return fmt.Errorf("failed to create zip header: %w", err)
		}
		header.Name = e.relPath
		if e.info.IsDir() {
			header.Name += "/"
			header.Method = zip.Store
		} else {
			header.Method = method
		}

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create zip entry: %w", err)
		}

		switch {
		case e.link != "":
			_, err = io.WriteString(writer, e.link)
			return err
		case e.info.Mode().IsRegular():
			return copyFile(writer, e.path)
		}
		return nil
	})
	if err != nil {
		_ = zipWriter.Close()
		return fmt.Errorf("failed to walk directory: %w", err)
	}

	return zipWriter.Close()
}

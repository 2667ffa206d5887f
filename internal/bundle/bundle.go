package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"crusader-launcher/internal/logging"
	"crusader-launcher/internal/platform"
)

const defaultCompressionLevel = 6

// ErrUnsafePath is returned for archive entries that would land outside the destination
var ErrUnsafePath = errors.New("archive entry escapes destination directory")

// ErrUnknownFormat is returned for archive names without a supported extension
var ErrUnknownFormat = errors.New("unknown bundle format")

// Format is a native bundle archive format
type Format string

const (
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
	FormatZip    Format = "zip"
)

// Stats summarizes a pack or unpack run
type Stats struct {
	Files   int
	Bytes   int64
	Skipped int
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 32*1024)
	},
}

// DetectFormat picks the archive format from the file name
func DetectFormat(name string) (Format, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(lower, ".tar.zst"):
		return FormatTarZst, nil
	case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".jar"):
		return FormatZip, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(name))
	}
}

// DefaultFormat returns the format bundles for p are usually shipped in
func DefaultFormat(p platform.Platform) Format {
	if p == platform.Windows {
		return FormatZip
	}
	return FormatTarGz
}

// FileName returns the conventional bundle name for p, e.g. natives-linux.tar.gz
func FileName(p platform.Platform) string {
	return fmt.Sprintf("natives-%s.%s", p.NativeDirName(), DefaultFormat(p))
}

// Pack archives the native directory srcDir into archivePath, skipping files
// matched by p's ignore patterns
func Pack(srcDir, archivePath string, compressionLevel int, p platform.Platform) (Stats, error) {
	sugar := logging.Named("bundle")

	if info, err := os.Stat(srcDir); err != nil || !info.IsDir() {
		return Stats{}, fmt.Errorf("native directory does not exist: %s", srcDir)
	}

	format, err := DetectFormat(archivePath)
	if err != nil {
		return Stats{}, err
	}

	if compressionLevel < 0 || compressionLevel > 9 {
		compressionLevel = defaultCompressionLevel
	}

	sugar.Infof("Packing %s natives from: %s", p, srcDir)
	sugar.Infof("Bundle file: %s", archivePath)
	sugar.Debugf("Using compression level: %d", compressionLevel)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return Stats{}, fmt.Errorf("failed to create bundle directory: %w", err)
	}

	w := &packWalk{
		source:  srcDir,
		matcher: newMatcher(p),
		report:  newProgress("Bundle size"),
	}

	switch format {
	case FormatTarGz:
		err = createTarGz(w, archivePath, compressionLevel)
	case FormatTarZst:
		err = createTarZst(w, archivePath, compressionLevel)
	case FormatZip:
		err = createZip(w, archivePath, compressionLevel)
	}
	if err != nil {
		_ = os.Remove(archivePath)
		return Stats{}, err
	}

	sugar.Infof("Packed %d files (%.2f MB), skipped %d", w.stats.Files, float64(w.stats.Bytes)/1024/1024, w.stats.Skipped)
	return w.stats, nil
}

// Unpack extracts a native bundle into destDir, skipping ignored files and
// rejecting entries that would escape destDir
func Unpack(archivePath, destDir string, p platform.Platform) (Stats, error) {
	sugar := logging.Named("bundle")

	format, err := DetectFormat(archivePath)
	if err != nil {
		return Stats{}, err
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return Stats{}, fmt.Errorf("failed to create native directory: %w", err)
	}

	sugar.Infof("Unpacking %s into: %s", archivePath, destDir)

	realDest, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to resolve native directory: %w", err)
	}

	x := &extractor{
		dest:     filepath.Clean(destDir),
		realDest: realDest,
		matcher:  newMatcher(p),
		report:   newProgress("Extracted"),
	}

	switch format {
	case FormatTarGz:
		err = extractTarGz(x, archivePath)
	case FormatTarZst:
		err = extractTarZst(x, archivePath)
	case FormatZip:
		err = extractZip(x, archivePath)
	}
	if err != nil {
		return x.stats, err
	}

	sugar.Infof("Unpacked %d files (%.2f MB), skipped %d", x.stats.Files, float64(x.stats.Bytes)/1024/1024, x.stats.Skipped)
	return x.stats, nil
}

// progress logs throughput at most every five seconds
type progress struct {
	label      string
	startTime  time.Time
	lastUpdate time.Time
	interval   time.Duration
}

func newProgress(label string) *progress {
	now := time.Now()
	return &progress{label: label, startTime: now, lastUpdate: now, interval: 5 * time.Second}
}

func (r *progress) maybeReport(bytes int64) {
	if time.Since(r.lastUpdate) < r.interval {
		return
	}
	sizeMB := float64(bytes) / 1024 / 1024
	elapsed := time.Since(r.startTime).Seconds()
	logging.Named("bundle").Infof("%s: %.2f MB (%.2f MB/s)", r.label, sizeMB, sizeMB/elapsed)
	r.lastUpdate = time.Now()
}

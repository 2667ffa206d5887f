package natives

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"crusader-launcher/internal/platform"
)

// Library is a native library file found in a native directory
type Library struct {
	Name string
	Path string
	Size int64
}

// List returns the native libraries in dir, named by p's conventions
func List(dir string, p platform.Platform) ([]Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read native directory: %w", err)
	}

	var libs []Library
	for _, e := range entries {
		if e.IsDir() || !isLibraryFile(e.Name(), p) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		libs = append(libs, Library{
			Name: libraryName(e.Name(), p),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}

	sort.Slice(libs, func(i, j int) bool { return libs[i].Name < libs[j].Name })
	return libs, nil
}

// Verify returns the required libraries that are missing from cfg's directory.
// A library is present when List finds it under any of its file names,
// versioned sonames included.
func Verify(cfg Config, required []string) ([]string, error) {
	if _, err := os.Stat(cfg.Dir()); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLibraryPathMissing, cfg.Dir())
		}
		return nil, err
	}

	libs, err := List(cfg.Dir(), cfg.Platform)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range required {
		if !hasLibrary(libs, name, cfg.Platform) {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func hasLibrary(libs []Library, name string, p platform.Platform) bool {
	for _, lib := range libs {
		if lib.Name == name || (p == platform.Windows && strings.EqualFold(lib.Name, name)) {
			return true
		}
	}
	return false
}

func isLibraryFile(name string, p platform.Platform) bool {
	ext := p.LibraryExtension()
	if p == platform.Windows {
		return strings.EqualFold(filepath.Ext(name), ext)
	}
	// versioned sonames such as libopenal.so.1
	return strings.HasSuffix(name, ext) || strings.Contains(name, ext+".")
}

func libraryName(file string, p platform.Platform) string {
	ext := p.LibraryExtension()
	name := file
	if i := strings.Index(strings.ToLower(name), strings.ToLower(ext)); i >= 0 {
		name = name[:i]
	}
	if p != platform.Windows {
		name = strings.TrimPrefix(name, "lib")
	}
	return name
}

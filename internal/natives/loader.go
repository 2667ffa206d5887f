package natives

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"crusader-launcher/internal/platform"

	"go.uber.org/zap"
)

var (
	// ErrLibraryPathMissing is returned when the native directory does not exist
	ErrLibraryPathMissing = errors.New("native library path does not exist")
	// ErrNotInitialized is returned when a library is loaded before Init
	ErrNotInitialized = errors.New("native loader is not initialized")
)

// Config carries the resolved native library location into the loader and the game.
// It replaces the process-wide library path property.
type Config struct {
	LibraryPath string
	Platform    platform.Platform
}

// Dir returns the library path without its trailing separator
func (c Config) Dir() string {
	return filepath.Clean(c.LibraryPath)
}

// LibraryFile returns the full path of the native library called name
func (c Config) LibraryFile(name string) string {
	return filepath.Join(c.Dir(), c.Platform.LibraryFileName(name))
}

// Loader opens native libraries from one Config
type Loader struct {
	cfg         Config
	sugar       *zap.SugaredLogger
	mu          sync.Mutex
	initialized bool
	handles     map[string]uintptr
}

// NewLoader creates a loader for cfg. Nothing is touched until Init.
func NewLoader(cfg Config, sugar *zap.SugaredLogger) *Loader {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}
	return &Loader{
		cfg:     cfg,
		sugar:   sugar,
		handles: make(map[string]uintptr),
	}
}

// Config returns the configuration the loader was created with
func (l *Loader) Config() Config {
	return l.cfg
}

// Init validates the library directory and registers it with the OS loader.
// It must run before any native call; calling it again is a no-op.
func (l *Loader) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	dir := l.cfg.Dir()
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrLibraryPathMissing, dir)
		}
		return fmt.Errorf("failed to stat native library path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrLibraryPathMissing, dir)
	}

	if err := setLibraryDir(dir); err != nil {
		return fmt.Errorf("failed to set native library directory: %w", err)
	}

	l.initialized = true
	l.sugar.Debugf("Native library path: %s", dir)
	return nil
}

// Load opens the native library called name, e.g. "lwjgl" for liblwjgl.so
func (l *Loader) Load(name string) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return 0, ErrNotInitialized
	}
	if h, ok := l.handles[name]; ok {
		return h, nil
	}

	path := l.cfg.LibraryFile(name)
	h, err := openLibrary(path)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", path, err)
	}

	l.handles[name] = h
	l.sugar.Debugf("Loaded native library: %s", path)
	return h, nil
}

// Symbol looks up an exported symbol in a library returned by Load
func (l *Loader) Symbol(lib uintptr, name string) (uintptr, error) {
	sym, err := findSymbol(lib, name)
	if err != nil {
		return 0, fmt.Errorf("symbol %s: %w", name, err)
	}
	return sym, nil
}

// Close releases every library opened by this loader
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for name, h := range l.handles {
		if err := closeLibrary(h); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", name, err))
		}
		delete(l.handles, name)
	}
	return errors.Join(errs...)
}

package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"crusader-launcher/internal/logging"
	"crusader-launcher/internal/natives"
	"crusader-launcher/internal/platform"
)

// Options controls platform resolution. Zero values fall back to the process
// working directory, lib/native and the host's platform identifier.
type Options struct {
	WorkDir       string
	NativeBaseDir string
	Identifier    string
	// Required natives are checked after resolution; missing ones are only reported
	Required []string
}

// EntryPoint is the game's main routine, run once the native library path is known
type EntryPoint interface {
	Run(ctx context.Context, loader *natives.Loader, args []string) error
}

// EntryFunc adapts a function to EntryPoint
type EntryFunc func(ctx context.Context, loader *natives.Loader, args []string) error

func (f EntryFunc) Run(ctx context.Context, loader *natives.Loader, args []string) error {
	return f(ctx, loader, args)
}

// Bootstrap reads the platform identifier, resolves it and builds the native
// library path. It has no side effects.
func Bootstrap(opts Options) (natives.Config, error) {
	identifier := opts.Identifier
	if identifier == "" {
		identifier = platform.HostIdentifier()
	}

	p, err := platform.Resolve(identifier)
	if err != nil {
		return natives.Config{}, err
	}
	return NativesConfig(opts.WorkDir, opts.NativeBaseDir, p)
}

// NativesConfig builds the native configuration for an already resolved platform.
// An empty workDir means the process working directory.
func NativesConfig(workDir, nativeBaseDir string, p platform.Platform) (natives.Config, error) {
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return natives.Config{}, fmt.Errorf("failed to determine working directory: %w", err)
		}
		workDir = wd
	}

	return natives.Config{
		LibraryPath: platform.NativeLibraryPath(workDir, nativeBaseDir, p),
		Platform:    p,
	}, nil
}

// Run bootstraps the native library path and starts entry with it. entry is
// never invoked when the platform is not supported.
func Run(ctx context.Context, opts Options, entry EntryPoint, args []string) error {
	cfg, err := Bootstrap(opts)
	if err != nil {
		return err
	}
	return Start(ctx, cfg, opts.Required, entry, args)
}

// Start initializes the native loader with cfg and hands control to entry with
// args untouched. Missing required natives are only reported.
func Start(ctx context.Context, cfg natives.Config, required []string, entry EntryPoint, args []string) error {
	sugar := logging.Named("launcher")
	sugar.Debugf("Resolved platform %s, native library path %s", cfg.Platform, cfg.LibraryPath)

	loader := natives.NewLoader(cfg, sugar)
	if err := loader.Init(); err != nil {
		if !errors.Is(err, natives.ErrLibraryPathMissing) {
			return err
		}
		// the game reports its own error when it cannot load a library
		sugar.Warnf("Native library directory is missing: %s", cfg.Dir())
	} else if len(required) > 0 {
		missing, err := natives.Verify(cfg, required)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			sugar.Warnf("Missing native libraries for %s (continuing anyway): %s", cfg.Platform, strings.Join(missing, ", "))
		}
	}
	defer func() {
		if err := loader.Close(); err != nil {
			sugar.Warnf("Failed to release native libraries: %v", err)
		}
	}()

	return entry.Run(ctx, loader, args)
}

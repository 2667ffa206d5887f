package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Platform is one of the host platforms the game ships native libraries for
type Platform int

const (
	Windows Platform = iota + 1
	MacOS
	Linux
)

// OSNameEnv overrides the platform identifier reported by the host
const OSNameEnv = "CRUSADER_OS_NAME"

// DefaultNativeBaseDir is where native library directories live, relative to the working directory
const DefaultNativeBaseDir = "lib/native"

// ErrUnsupportedPlatform is matched by every UnsupportedPlatformError
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// UnsupportedPlatformError reports a platform identifier that matches no known platform
type UnsupportedPlatformError struct {
	Identifier string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %q: expected Windows, Mac or Linux", e.Identifier)
}

func (e *UnsupportedPlatformError) Is(target error) bool {
	return target == ErrUnsupportedPlatform
}

// tokens is checked in order; the first token found in the identifier wins
var tokens = []struct {
	token    string
	platform Platform
}{
	{"windows", Windows},
	{"mac", MacOS},
	{"linux", Linux},
}

// Resolve maps a host platform identifier to a Platform using a
// case-insensitive substring match against Windows, Mac and Linux
func Resolve(identifier string) (Platform, error) {
	lower := strings.ToLower(identifier)
	for _, t := range tokens {
		if strings.Contains(lower, t.token) {
			return t.platform, nil
		}
	}
	return 0, &UnsupportedPlatformError{Identifier: identifier}
}

// HostIdentifier returns the platform identifier supplied by the host environment
func HostIdentifier() string {
	if name := os.Getenv(OSNameEnv); name != "" {
		return name
	}
	switch runtime.GOOS {
	case "windows":
		return "Windows"
	case "darwin":
		return "Mac OS X"
	case "linux":
		return "Linux"
	default:
		return runtime.GOOS
	}
}

// Detect resolves the platform of the running host
func Detect() (Platform, error) {
	return Resolve(HostIdentifier())
}

func (p Platform) String() string {
	switch p {
	case Windows:
		return "Windows"
	case MacOS:
		return "MacOS"
	case Linux:
		return "Linux"
	default:
		return fmt.Sprintf("Platform(%d)", int(p))
	}
}

// NativeDirName returns the directory name holding this platform's native libraries
func (p Platform) NativeDirName() string {
	switch p {
	case Windows:
		return "windows"
	case MacOS:
		return "macosx"
	case Linux:
		return "linux"
	default:
		return ""
	}
}

// LibraryFileName returns the file name a native library called name has on this platform
func (p Platform) LibraryFileName(name string) string {
	switch p {
	case Windows:
		return name + ".dll"
	case MacOS:
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

// LibraryExtension returns the file extension of native libraries on this platform
func (p Platform) LibraryExtension() string {
	return filepath.Ext(p.LibraryFileName("x"))
}

// LibrarySearchEnv returns the environment variable the dynamic loader searches
func (p Platform) LibrarySearchEnv() string {
	switch p {
	case Windows:
		return "PATH"
	case MacOS:
		return "DYLD_LIBRARY_PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

// IgnorePatterns returns patterns of files that never belong in a native directory
func (p Platform) IgnorePatterns() []string {
	common := []string{
		"./**/.git",
		"./**/*.txt",
		"./**/*.md",
	}
	switch p {
	case Windows:
		return append(common, getWindowsIgnores()...)
	case MacOS:
		return append(common, getMacOSIgnores()...)
	case Linux:
		return append(common, getLinuxIgnores()...)
	default:
		return common
	}
}

// NativeLibraryPath builds <workDir>/<baseDir>/<platform dir>/ with a trailing separator
func NativeLibraryPath(workDir, baseDir string, p Platform) string {
	if baseDir == "" {
		baseDir = DefaultNativeBaseDir
	}
	dir := filepath.Join(workDir, filepath.FromSlash(baseDir), p.NativeDirName())
	return dir + string(filepath.Separator)
}

// All returns every supported platform in resolution order
func All() []Platform {
	out := make([]Platform, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.platform)
	}
	return out
}

// ParseDirName maps a native directory name back to its Platform
func ParseDirName(name string) (Platform, error) {
	for _, p := range All() {
		if p.NativeDirName() == strings.ToLower(name) {
			return p, nil
		}
	}
	return 0, &UnsupportedPlatformError{Identifier: name}
}

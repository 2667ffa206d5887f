//go:build !darwin && !linux && !windows

package natives

import (
	"errors"
	"runtime"
)

var errNoDynamicLoader = errors.New("native libraries are not supported on " + runtime.GOOS)

func openLibrary(path string) (uintptr, error) {
	return 0, errNoDynamicLoader
}

func findSymbol(lib uintptr, name string) (uintptr, error) {
	return 0, errNoDynamicLoader
}

func closeLibrary(lib uintptr) error {
	return nil
}

func setLibraryDir(dir string) error {
	return nil
}

//go:build windows

package natives

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func openLibrary(path string) (uintptr, error) {
	h, err := windows.LoadLibraryEx(path, 0, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	if err != nil {
		return 0, err
	}
	return uintptr(h), nil
}

func findSymbol(lib uintptr, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(lib), name)
}

func closeLibrary(lib uintptr) error {
	return windows.FreeLibrary(windows.Handle(lib))
}

// setLibraryDir puts dir ahead of System32 for dependent DLL lookups
func setLibraryDir(dir string) error {
	if err := windows.SetDllDirectory(dir); err != nil {
		return fmt.Errorf("SetDllDirectory failed: %w", err)
	}
	return nil
}

package launcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"crusader-launcher/internal/natives"
	"crusader-launcher/internal/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	helperEnv     = "CRUSADER_TEST_HELPER"
	helperDirEnv  = "CRUSADER_TEST_WANT_DIR"
	helperKeyEnv  = "CRUSADER_TEST_WANT_KEY"
	helperArgsEnv = "CRUSADER_TEST_WANT_ARGS"
)

func nativeDir(workDir, dirName string) string {
	return filepath.Join(workDir, "lib", "native", dirName) + string(filepath.Separator)
}

func TestBootstrap(t *testing.T) {
	workDir := t.TempDir()

	tests := []struct {
		identifier string
		baseDir    string
		want       platform.Platform
		wantPath   string
	}{
		{"Windows 10", "", platform.Windows, nativeDir(workDir, "windows")},
		{"Mac OS X", "", platform.MacOS, nativeDir(workDir, "macosx")},
		{"Linux", "", platform.Linux, nativeDir(workDir, "linux")},
		{"Darwin/Mac", "", platform.MacOS, nativeDir(workDir, "macosx")},
		{"Linux", "natives", platform.Linux, filepath.Join(workDir, "natives", "linux") + string(filepath.Separator)},
	}

	for _, tt := range tests {
		t.Run(tt.identifier+"/"+tt.baseDir, func(t *testing.T) {
			cfg, err := Bootstrap(Options{WorkDir: workDir, NativeBaseDir: tt.baseDir, Identifier: tt.identifier})
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Platform)
			assert.Equal(t, tt.wantPath, cfg.LibraryPath)
		})
	}
}

func TestBootstrapUnsupported(t *testing.T) {
	cfg, err := Bootstrap(Options{WorkDir: t.TempDir(), Identifier: "SolarisX"})
	require.Error(t, err)
	assert.ErrorIs(t, err, platform.ErrUnsupportedPlatform)

	var unsupported *platform.UnsupportedPlatformError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "SolarisX", unsupported.Identifier)
	assert.Empty(t, cfg.LibraryPath)
}

func TestBootstrapDefaults(t *testing.T) {
	t.Setenv(platform.OSNameEnv, "Windows 7")

	wd, err := os.Getwd()
	require.NoError(t, err)

	cfg, err := Bootstrap(Options{})
	require.NoError(t, err)
	assert.Equal(t, platform.Windows, cfg.Platform)
	assert.Equal(t, nativeDir(wd, "windows"), cfg.LibraryPath)
}

func TestRunDelegatesWithOriginalArgs(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(nativeDir(workDir, "windows"), 0755))

	args := []string{"--fullscreen", "", "-Dfoo=bar", "save game.dat"}
	var gotArgs []string
	var gotCfg natives.Config
	calls := 0

	entry := EntryFunc(func(ctx context.Context, loader *natives.Loader, a []string) error {
		calls++
		gotArgs = a
		gotCfg = loader.Config()
		return nil
	})

	err := Run(context.Background(), Options{WorkDir: workDir, Identifier: "Windows 10"}, entry, args)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, args, gotArgs)
	assert.Equal(t, nativeDir(workDir, "windows"), gotCfg.LibraryPath)
	assert.Equal(t, platform.Windows, gotCfg.Platform)
}

func TestRunMissingNativeDirStillLaunches(t *testing.T) {
	called := false
	entry := EntryFunc(func(ctx context.Context, loader *natives.Loader, a []string) error {
		called = true
		assert.Equal(t, platform.MacOS, loader.Config().Platform)
		return nil
	})

	err := Run(context.Background(), Options{WorkDir: t.TempDir(), Identifier: "Darwin/Mac"}, entry, nil)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestRunUnsupportedNeverInvokesEntry(t *testing.T) {
	called := false
	entry := EntryFunc(func(ctx context.Context, loader *natives.Loader, a []string) error {
		called = true
		return nil
	})

	err := Run(context.Background(), Options{WorkDir: t.TempDir(), Identifier: "SolarisX"}, entry, []string{"a"})
	assert.ErrorIs(t, err, platform.ErrUnsupportedPlatform)
	assert.False(t, called)
}

func TestRunReturnsEntryError(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(nativeDir(workDir, "linux"), 0755))

	entry := EntryFunc(func(ctx context.Context, loader *natives.Loader, a []string) error {
		return &ExitError{Code: 2}
	})

	err := Run(context.Background(), Options{WorkDir: workDir, Identifier: "Linux"}, entry, nil)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
}

func TestJavaCommand(t *testing.T) {
	dir := filepath.Join("game", "lib", "native", "linux")
	cfg := natives.Config{LibraryPath: dir + string(filepath.Separator), Platform: platform.Linux}

	j := JavaEntryPoint{
		Java:       "java",
		ClassPath:  []string{"crusader.jar", "lib/*"},
		MainClass:  "game.Main",
		JVMOptions: []string{"-Xmx1G"},
		Dir:        "game",
	}

	cmd := j.Command(context.Background(), cfg, []string{"--fullscreen"})
	assert.Equal(t, []string{
		"java",
		"-Xmx1G",
		"-Dorg.lwjgl.librarypath=" + dir,
		"-Djava.library.path=" + dir,
		"-cp", "crusader.jar" + string(os.PathListSeparator) + "lib/*",
		"game.Main",
		"--fullscreen",
	}, cmd.Args)
	assert.Equal(t, "game", cmd.Dir)
	assert.True(t, strings.HasPrefix(lookupEnv(cmd.Env, "LD_LIBRARY_PATH"), dir))
}

func TestCommandEntryPointArgs(t *testing.T) {
	cfg := natives.Config{LibraryPath: "natives", Platform: platform.MacOS}
	c := CommandEntryPoint{Program: "./crusader-bin", Args: []string{"--renderer", "gl"}}

	cmd := c.Command(context.Background(), cfg, []string{"--windowed"})
	assert.Equal(t, []string{"./crusader-bin", "--renderer", "gl", "--windowed"}, cmd.Args)
	assert.Equal(t, "natives", lookupEnv(cmd.Env, "DYLD_LIBRARY_PATH"))
}

func TestCommandEntryPointRun(t *testing.T) {
	workDir := t.TempDir()
	dir := nativeDir(workDir, "linux")
	require.NoError(t, os.MkdirAll(dir, 0755))

	t.Setenv(helperEnv, "1")
	t.Setenv(helperDirEnv, filepath.Clean(dir))
	t.Setenv(helperKeyEnv, platform.Linux.LibrarySearchEnv())
	t.Setenv(helperArgsEnv, "--fullscreen|save 1")

	entry := CommandEntryPoint{
		Program: os.Args[0],
		Args:    []string{"-test.run=^TestHelperProcess$", "--"},
	}

	err := Run(context.Background(), Options{WorkDir: workDir, Identifier: "Linux"}, entry, []string{"--fullscreen", "save 1"})
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "unexpected error: %v", err)
	assert.Equal(t, 3, exitErr.Code)
}

// TestHelperProcess stands in for a game binary. It exits with 3 when it sees
// the expected library path and arguments.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}

	if !strings.HasPrefix(os.Getenv(os.Getenv(helperKeyEnv)), os.Getenv(helperDirEnv)) {
		os.Exit(4)
	}
	if strings.Join(args, "|") != os.Getenv(helperArgsEnv) {
		os.Exit(5)
	}
	os.Exit(3)
}

func TestSetEnvVar(t *testing.T) {
	env := []string{"HOME=/home/crusader", "LD_LIBRARY_PATH=/usr/lib", "LD_LIBRARY_PATH=/dup"}

	out := setEnvVar(env, "LD_LIBRARY_PATH", "/game/natives")
	assert.Equal(t, []string{"HOME=/home/crusader", "LD_LIBRARY_PATH=/game/natives"}, out)

	out = setEnvVar([]string{"HOME=/home/crusader"}, "DYLD_LIBRARY_PATH", "/game/natives")
	assert.Equal(t, []string{"HOME=/home/crusader", "DYLD_LIBRARY_PATH=/game/natives"}, out)
}

func TestLibraryEnvPrependsExisting(t *testing.T) {
	cfg := natives.Config{LibraryPath: "/game/natives/", Platform: platform.Linux}
	out := libraryEnv([]string{"LD_LIBRARY_PATH=/usr/lib"}, cfg)
	assert.Equal(t, []string{"LD_LIBRARY_PATH=" + filepath.Clean("/game/natives") + string(os.PathListSeparator) + "/usr/lib"}, out)
}

func TestStartUsesResolvedConfig(t *testing.T) {
	workDir := t.TempDir()
	cfg, err := NativesConfig(workDir, "natives", platform.Linux)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workDir, "natives", "linux")+string(filepath.Separator), cfg.LibraryPath)

	var got natives.Config
	entry := EntryFunc(func(ctx context.Context, loader *natives.Loader, a []string) error {
		got = loader.Config()
		assert.Equal(t, []string{"-x"}, a)
		return nil
	})

	require.NoError(t, Start(context.Background(), cfg, []string{"lwjgl"}, entry, []string{"-x"}))
	assert.Equal(t, cfg, got)
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"crusader-launcher/internal/bundle"
	"crusader-launcher/internal/config"
	"crusader-launcher/internal/fetch"
	"crusader-launcher/internal/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierPrecedence(t *testing.T) {
	t.Setenv(platform.OSNameEnv, "Linux")

	g := &globalOptions{cfg: &config.Config{}}
	assert.Equal(t, "Linux", g.identifier())

	g.cfg.OSName = "Mac OS X"
	assert.Equal(t, "Mac OS X", g.identifier())

	g.osName = "Windows 10"
	assert.Equal(t, "Windows 10", g.identifier())
}

func TestPlatformFlag(t *testing.T) {
	workDir := t.TempDir()
	g := &globalOptions{workDir: workDir, osName: "Windows 10", cfg: &config.Config{NativeDir: "natives"}}

	cfg, err := g.platformFlag("")
	require.NoError(t, err)
	assert.Equal(t, platform.Windows, cfg.Platform)
	assert.Equal(t, filepath.Join(workDir, "natives", "windows"), cfg.Dir())

	cfg, err = g.platformFlag("macosx")
	require.NoError(t, err)
	assert.Equal(t, platform.MacOS, cfg.Platform)

	_, err = g.platformFlag("solaris")
	assert.ErrorIs(t, err, platform.ErrUnsupportedPlatform)
}

func TestResolveUnsupported(t *testing.T) {
	g := &globalOptions{workDir: t.TempDir(), osName: "SolarisX", cfg: &config.Config{}}
	_, err := g.resolve()
	assert.ErrorIs(t, err, platform.ErrUnsupportedPlatform)
}

func TestFetchBundleUnpacksIntoNativeDir(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "lwjgl.dll"), []byte("lwjgl"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "lwjgl.pdb"), []byte("symbols"), 0644))

	remote := filepath.Join(t.TempDir(), bundle.FileName(platform.Windows))
	_, err := bundle.Pack(src, remote, 6, platform.Windows)
	require.NoError(t, err)

	rcloneConf := filepath.Join(t.TempDir(), "rclone.conf")
	require.NoError(t, os.WriteFile(rcloneConf, nil, 0600))

	workDir := t.TempDir()
	g := &globalOptions{workDir: workDir, cfg: &config.Config{}}
	cfg := g.nativesFor(platform.Windows)

	req := fetch.Request{
		Method:       fetch.MethodRclone,
		Remote:       remote,
		LocalDir:     filepath.Join(workDir, "downloads"),
		RcloneConfig: rcloneConf,
	}

	localPath, err := fetchBundle(context.Background(), req, cfg, true, false)
	require.NoError(t, err)
	assert.NoFileExists(t, localPath)

	content, err := os.ReadFile(filepath.Join(cfg.Dir(), "lwjgl.dll"))
	require.NoError(t, err)
	assert.Equal(t, "lwjgl", string(content))
	assert.NoFileExists(t, filepath.Join(cfg.Dir(), "lwjgl.pdb"))
}

func TestFetchBundleKeepsDownloadWithoutUnpack(t *testing.T) {
	remote := filepath.Join(t.TempDir(), "natives-linux.tar.gz")
	require.NoError(t, os.WriteFile(remote, []byte("not unpacked"), 0644))

	rcloneConf := filepath.Join(t.TempDir(), "rclone.conf")
	require.NoError(t, os.WriteFile(rcloneConf, nil, 0600))

	workDir := t.TempDir()
	g := &globalOptions{workDir: workDir, cfg: &config.Config{}}

	req := fetch.Request{
		Method:       fetch.MethodRclone,
		Remote:       remote,
		LocalDir:     filepath.Join(workDir, "downloads"),
		RcloneConfig: rcloneConf,
	}

	localPath, err := fetchBundle(context.Background(), req, g.nativesFor(platform.Linux), false, false)
	require.NoError(t, err)
	assert.FileExists(t, localPath)
	assert.NoDirExists(t, g.nativesFor(platform.Linux).Dir())
}

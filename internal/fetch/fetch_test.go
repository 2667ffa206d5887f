package fetch

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crusader-launcher/internal/bundle"
	"crusader-launcher/internal/platform"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseMethod(t *testing.T) {
	for _, m := range Methods() {
		got, err := ParseMethod(strings.ToUpper(string(m)))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	_, err := ParseMethod("ftp")
	assert.ErrorIs(t, err, ErrUnknownMethod)

	assert.False(t, MethodRclone.IsSSH())
	assert.True(t, MethodSCP.IsSSH())
}

func TestRequestLocalPath(t *testing.T) {
	dir := filepath.FromSlash("/tmp/natives")

	tests := []struct {
		method Method
		remote string
		want   string
	}{
		{MethodRclone, "drive:crusader/natives-linux.tar.gz", "natives-linux.tar.gz"},
		{MethodRclone, "s3:bucket/natives-windows.zip", "natives-windows.zip"},
		{MethodSFTP, "/srv/crusader/natives-macosx.tar.gz", "natives-macosx.tar.gz"},
		{MethodSCP, "natives-linux.tar.zst", "natives-linux.tar.zst"},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			r := Request{Method: tt.method, Remote: tt.remote, LocalDir: dir}
			assert.Equal(t, filepath.Join(dir, tt.want), r.LocalPath())
		})
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr string
	}{
		{"ok rclone", Request{Method: MethodRclone, Remote: "drive:x.zip", LocalDir: "d"}, ""},
		{"ok sftp", Request{Method: MethodSFTP, Remote: "/x.zip", LocalDir: "d", SSH: SSHConfig{Host: "h"}}, ""},
		{"bad method", Request{Method: "ftp", Remote: "x", LocalDir: "d"}, "unknown fetch method"},
		{"no remote", Request{Method: MethodRclone, LocalDir: "d"}, "remote bundle path is required"},
		{"no host", Request{Method: MethodGoph, Remote: "/x.zip", LocalDir: "d"}, "SSH host is required"},
		{"no local dir", Request{Method: MethodRclone, Remote: "drive:x.zip"}, "local directory is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFetchRejectsInvalidRequest(t *testing.T) {
	_, err := Fetch(context.Background(), Request{Method: MethodSCP, Remote: "/x.zip", LocalDir: t.TempDir()})
	assert.Error(t, err)
}

func TestSCPArgs(t *testing.T) {
	args := scpArgs("/srv/natives.zip", "out/natives.zip", SSHConfig{Host: "cdn"}, false)
	assert.Equal(t, []string{DefaultSSHUser + "@cdn:/srv/natives.zip", "out/natives.zip"}, args)

	args = scpArgs("/srv/natives.zip", "out/natives.zip", SSHConfig{Host: "cdn", Port: "2222", User: "game", KeyFile: "~/.ssh/id"}, true)
	assert.Equal(t, []string{"-P", "2222", "-i", "~/.ssh/id", "-v", "game@cdn:/srv/natives.zip", "out/natives.zip"}, args)
}

func TestAuthMethods(t *testing.T) {
	t.Run("password", func(t *testing.T) {
		methods, err := authMethods(SSHConfig{Password: "secret"})
		require.NoError(t, err)
		assert.Len(t, methods, 1)
	})

	t.Run("missing key file", func(t *testing.T) {
		_, err := authMethods(SSHConfig{KeyFile: filepath.Join(t.TempDir(), "id_missing")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read SSH key file")
	})

	t.Run("no keys anywhere", func(t *testing.T) {
		homedir.DisableCache = true
		defer func() { homedir.DisableCache = false }()

		t.Setenv("HOME", t.TempDir())
		t.Setenv("USERPROFILE", t.TempDir())
		t.Setenv("SSH_AUTH_SOCK", "")
		_, err := authMethods(SSHConfig{})
		assert.Error(t, err)
	})
}

func TestProgressReader(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 64*1024)
	pr := &progressReader{
		reader:    bytes.NewReader(data),
		total:     int64(len(data)),
		startTime: time.Now().Add(-time.Second),
		sugar:     zap.NewNop().Sugar(),
	}

	n, err := io.Copy(io.Discard, pr)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, int64(len(data)), pr.transferred)
}

func TestContextReader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cr := &contextReader{ctx: ctx, r: strings.NewReader("natives")}

	buf := make([]byte, 3)
	_, err := cr.Read(buf)
	require.NoError(t, err)

	cancel()
	_, err = cr.Read(buf)
	assert.ErrorIs(t, err, context.Canceled)
}

// emptyRcloneConfig keeps the user's rclone.conf out of the test
func emptyRcloneConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rclone.conf")
	require.NoError(t, os.WriteFile(path, nil, 0600))
	return path
}

func TestFetchRcloneLocalPath(t *testing.T) {
	src := t.TempDir()
	remote := filepath.Join(src, "natives-linux.tar.gz")
	require.NoError(t, os.WriteFile(remote, []byte("bundle"), 0644))

	localDir := filepath.Join(t.TempDir(), "downloads")
	got, err := Fetch(context.Background(), Request{
		Method:       MethodRclone,
		Remote:       remote,
		LocalDir:     localDir,
		RcloneConfig: emptyRcloneConfig(t),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(localDir, "natives-linux.tar.gz"), got)

	content, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "bundle", string(content))
}

func TestFetchRcloneMissingFile(t *testing.T) {
	_, err := Fetch(context.Background(), Request{
		Method:       MethodRclone,
		Remote:       filepath.Join(t.TempDir(), "natives-linux.tar.gz"),
		LocalDir:     t.TempDir(),
		RcloneConfig: emptyRcloneConfig(t),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rclone fetch failed")
}

func TestFetchThenUnpack(t *testing.T) {
	nativeSrc := t.TempDir()
	files := map[string]string{
		"liblwjgl.so":             "lwjgl",
		"libopenal.so":            "openal",
		"x64/libjinput.so":        "jinput",
		"README.md":               "ignored",
		"build/liblwjgl.so.debug": "ignored",
	}
	for name, content := range files {
		path := filepath.Join(nativeSrc, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	remoteDir := t.TempDir()
	remote := filepath.Join(remoteDir, bundle.FileName(platform.Linux))
	_, err := bundle.Pack(nativeSrc, remote, 6, platform.Linux)
	require.NoError(t, err)

	localPath, err := Fetch(context.Background(), Request{
		Method:       MethodRclone,
		Remote:       remote,
		LocalDir:     t.TempDir(),
		RcloneConfig: emptyRcloneConfig(t),
	})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "lib", "native", "linux")
	stats, err := bundle.Unpack(localPath, dest, platform.Linux)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)

	content, err := os.ReadFile(filepath.Join(dest, "x64", "libjinput.so"))
	require.NoError(t, err)
	assert.Equal(t, "jinput", string(content))
	assert.NoFileExists(t, filepath.Join(dest, "README.md"))
	assert.NoFileExists(t, filepath.Join(dest, "build", "liblwjgl.so.debug"))
}

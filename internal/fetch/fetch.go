package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// Defaults for SSH based fetches
const (
	DefaultSSHPort = "22"
	DefaultSSHUser = "crusader"
)

// ErrUnknownMethod is returned by ParseMethod for unsupported transfer methods
var ErrUnknownMethod = errors.New("unknown fetch method")

// Method selects the transport used to download a native bundle
type Method string

const (
	MethodRclone    Method = "rclone"
	MethodSFTP      Method = "sftp"
	MethodGoph      Method = "goph"
	MethodSCP       Method = "scp"
	MethodSCPBinary Method = "scp-binary"
)

// Methods lists every supported method
func Methods() []Method {
	return []Method{MethodRclone, MethodSFTP, MethodGoph, MethodSCP, MethodSCPBinary}
}

// ParseMethod converts a flag or config value into a Method
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Methods() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// IsSSH reports whether the method needs an SSH host
func (m Method) IsSSH() bool {
	return m != MethodRclone
}

// SSHConfig holds SSH connection configuration
type SSHConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	KeyFile  string
}

func (c SSHConfig) port() string {
	if c.Port == "" {
		return DefaultSSHPort
	}
	return c.Port
}

func (c SSHConfig) user() string {
	if c.User == "" {
		return DefaultSSHUser
	}
	return c.User
}

// Request describes one bundle download
type Request struct {
	Method   Method
	Remote   string
	SSH      SSHConfig
	LocalDir string
	Verbose  bool
	// RcloneConfig overrides the rclone.conf location for rclone fetches
	RcloneConfig string
}

// LocalPath returns where the bundle lands: LocalDir/<remote file name>
func (r Request) LocalPath() string {
	remote := r.Remote
	if runtime.GOOS == "windows" {
		remote = strings.ReplaceAll(remote, `\`, "/")
	}
	remote = strings.TrimRight(remote, "/")
	if i := strings.LastIndex(remote, ":"); i >= 0 && r.Method == MethodRclone {
		remote = remote[i+1:]
	}
	return filepath.Join(r.LocalDir, path.Base(remote))
}

// Validate checks the request before any connection is made
func (r Request) Validate() error {
	if _, err := ParseMethod(string(r.Method)); err != nil {
		return err
	}
	if strings.TrimSpace(r.Remote) == "" {
		return errors.New("remote bundle path is required")
	}
	if r.Method.IsSSH() && r.SSH.Host == "" {
		return fmt.Errorf("SSH host is required for %s fetch", r.Method)
	}
	if r.LocalDir == "" {
		return errors.New("local directory is required")
	}
	return nil
}

// Fetch downloads the bundle described by r and returns its local path
func Fetch(ctx context.Context, r Request) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.LocalDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	localPath := r.LocalPath()

	var err error
	switch r.Method {
	case MethodRclone:
		err = fetchRclone(ctx, r.Remote, r.LocalDir, r.RcloneConfig)
	case MethodSFTP:
		err = fetchSFTP(ctx, r.Remote, localPath, r.SSH)
	case MethodGoph:
		err = fetchGoph(r.Remote, localPath, r.SSH)
	case MethodSCP:
		err = fetchSCP(ctx, r.Remote, localPath, r.SSH)
	case MethodSCPBinary:
		err = fetchSCPBinary(ctx, r.Remote, localPath, r.SSH, r.Verbose)
	}
	if err != nil {
		return "", fmt.Errorf("%s fetch failed: %w", r.Method, err)
	}

	return localPath, nil
}

package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"crusader-launcher/internal/logging"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// fetchSFTP downloads a bundle over SFTP with concurrent reads
func fetchSFTP(ctx context.Context, remotePath, localPath string, config SSHConfig) error {
	sugar := logging.Named("fetch")

	sugar.Infof("Starting SFTP download from %s@%s:%s", config.user(), config.Host, config.port())
	startTime := time.Now()

	auth, err := authMethods(config)
	if err != nil {
		return err
	}

	sshConfig := &ssh.ClientConfig{
		User:            config.user(),
		Auth:            auth,
		HostKeyCallback: hostKeyCallback(),
		Timeout:         30 * time.Second,
	}

	addr := net.JoinHostPort(config.Host, config.port())
	dialer := net.Dialer{Timeout: sshConfig.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SSH server: %w", err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to establish SSH connection: %w", err)
	}
	sshClient := ssh.NewClient(c, chans, reqs)
	defer sshClient.Close()

	sftpClient, err := sftp.NewClient(sshClient,
		sftp.UseConcurrentReads(true),
		sftp.MaxConcurrentRequestsPerFile(32),
		sftp.MaxPacketUnchecked(256*1024),
	)
	if err != nil {
		return fmt.Errorf("failed to create SFTP client: %w", err)
	}
	defer sftpClient.Close()

	remoteFile, err := sftpClient.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open remote bundle: %w", err)
	}
	defer remoteFile.Close()

	info, err := remoteFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat remote bundle: %w", err)
	}

	localFile, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer localFile.Close()

	sugar.Infof("Downloading %s to %s", remotePath, localPath)
	pr := &progressReader{
		reader:    remoteFile,
		total:     info.Size(),
		startTime: startTime,
		sugar:     sugar,
	}

	if _, err := io.Copy(localFile, &contextReader{ctx: ctx, r: pr}); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}

	sizeMB := float64(info.Size()) / 1024 / 1024
	sugar.Infof("SFTP download completed: %.2f MB in %s", sizeMB, time.Since(startTime).Round(time.Second))
	return nil
}

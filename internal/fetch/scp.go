package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"crusader-launcher/internal/logging"

	"github.com/bramvdbogaerde/go-scp"
	"github.com/bramvdbogaerde/go-scp/auth"
	"golang.org/x/crypto/ssh"
)

// fetchSCP downloads a bundle using the native SCP protocol
func fetchSCP(ctx context.Context, remotePath, localPath string, config SSHConfig) error {
	sugar := logging.Named("fetch")

	sugar.Infof("Starting SCP download from %s@%s:%s", config.user(), config.Host, config.port())
	startTime := time.Now()

	var clientConfig ssh.ClientConfig
	var err error
	switch {
	case config.KeyFile != "":
		keyFile, err := expandKeyFile(config.KeyFile)
		if err != nil {
			return err
		}
		clientConfig, err = auth.PrivateKey(config.user(), keyFile, hostKeyCallback())
		if err != nil {
			return fmt.Errorf("failed to load SSH key: %w", err)
		}
	case config.Password != "":
		clientConfig, err = auth.PasswordKey(config.user(), config.Password, hostKeyCallback())
		if err != nil {
			return fmt.Errorf("failed to configure password authentication: %w", err)
		}
	default:
		methods, err := authMethods(config)
		if err != nil {
			return err
		}
		clientConfig = ssh.ClientConfig{
			User:            config.user(),
			Auth:            methods,
			HostKeyCallback: hostKeyCallback(),
			Timeout:         30 * time.Second,
		}
	}

	scpClient := scp.NewClient(net.JoinHostPort(config.Host, config.port()), &clientConfig)
	if err := scpClient.Connect(); err != nil {
		return fmt.Errorf("failed to connect to SSH server: %w", err)
	}
	defer scpClient.Close()

	localFile, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer localFile.Close()

	sugar.Infof("Downloading %s to %s", remotePath, localPath)
	err = scpClient.CopyFromRemotePassThru(ctx, localFile, remotePath, func(r io.Reader, total int64) io.Reader {
		return &progressReader{
			reader:    r,
			total:     total,
			startTime: startTime,
			sugar:     sugar,
		}
	})
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}

	sugar.Infof("SCP download completed in %s", time.Since(startTime).Round(time.Second))
	return nil
}

package fetch

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"crusader-launcher/internal/logging"

	"github.com/melbahja/goph"
)

// fetchGoph downloads a bundle using goph's SFTP download helper
func fetchGoph(remotePath, localPath string, config SSHConfig) error {
	sugar := logging.Named("fetch")

	sugar.Infof("Starting SSH download from %s@%s:%s using goph", config.user(), config.Host, config.port())
	startTime := time.Now()

	var auth goph.Auth
	var err error
	switch {
	case config.KeyFile != "":
		keyFile, err := expandKeyFile(config.KeyFile)
		if err != nil {
			return err
		}
		auth, err = goph.Key(keyFile, "")
		if err != nil {
			return fmt.Errorf("failed to load SSH key: %w", err)
		}
		sugar.Debugf("Using SSH key from: %s", keyFile)
	case config.Password != "":
		auth = goph.Password(config.Password)
		sugar.Debugf("Using password authentication")
	default:
		methods, err := authMethods(config)
		if err != nil {
			return err
		}
		auth = goph.Auth(methods)
	}

	port, err := strconv.ParseUint(config.port(), 10, 16)
	if err != nil {
		return fmt.Errorf("invalid SSH port %q: %w", config.port(), err)
	}

	client, err := goph.NewConn(&goph.Config{
		User:     config.user(),
		Addr:     config.Host,
		Port:     uint(port),
		Auth:     auth,
		Timeout:  goph.DefaultTimeout,
		Callback: hostKeyCallback(),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to SSH server: %w", err)
	}
	defer client.Close()

	sugar.Infof("Downloading %s to %s", remotePath, localPath)
	if err := client.Download(remotePath, localPath); err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}

	if info, err := os.Stat(localPath); err == nil {
		duration := time.Since(startTime)
		sizeMB := float64(info.Size()) / 1024 / 1024
		sugar.Infof("Downloaded %.2f MB in %s (%.2f MB/s)", sizeMB, duration.Round(time.Second), sizeMB/duration.Seconds())
	}
	return nil
}

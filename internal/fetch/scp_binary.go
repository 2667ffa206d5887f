package fetch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"crusader-launcher/internal/logging"
)

// scpArgs builds the argument list for the system scp binary
func scpArgs(remotePath, localPath string, config SSHConfig, verbose bool) []string {
	args := []string{}

	if config.port() != DefaultSSHPort {
		args = append(args, "-P", config.port())
	}
	if config.KeyFile != "" {
		args = append(args, "-i", config.KeyFile)
	}
	if verbose {
		args = append(args, "-v")
	}

	source := fmt.Sprintf("%s@%s:%s", config.user(), config.Host, remotePath)
	return append(args, source, localPath)
}

// fetchSCPBinary downloads using the system scp binary, for hosts where
// only the user's own ssh setup (config, agents, jump hosts) works
func fetchSCPBinary(ctx context.Context, remotePath, localPath string, config SSHConfig, verbose bool) error {
	sugar := logging.Named("fetch")

	if _, err := exec.LookPath("scp"); err != nil {
		return fmt.Errorf("scp binary not found: %w", err)
	}

	args := scpArgs(remotePath, localPath, config, verbose)
	sugar.Infof("Downloading %s@%s:%s to %s using system scp", config.user(), config.Host, remotePath, localPath)
	sugar.Debugf("Running: scp %v", args)
	startTime := time.Now()

	scpCmd := exec.CommandContext(ctx, "scp", args...)
	scpCmd.Stdout = os.Stdout
	scpCmd.Stderr = os.Stderr

	if err := scpCmd.Run(); err != nil {
		return fmt.Errorf("scp command failed: %w", err)
	}

	sugar.Infof("Binary scp download completed in %s", time.Since(startTime).Round(time.Second))
	return nil
}

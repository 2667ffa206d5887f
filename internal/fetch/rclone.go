package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crusader-launcher/internal/logging"

	_ "github.com/rclone/rclone/backend/all" // register every rclone backend
	"github.com/rclone/rclone/fs"
	"github.com/rclone/rclone/fs/config"
	"github.com/rclone/rclone/fs/config/configfile"
	"github.com/rclone/rclone/fs/fspath"
	"github.com/rclone/rclone/fs/operations"
)

var rcloneConfigOnce sync.Once

// fetchRclone copies a single bundle from any rclone remote (e.g. "drive:natives/x.zip")
// into localDir, using rcloneConfig or else the user's rclone.conf
func fetchRclone(ctx context.Context, remote, localDir, rcloneConfig string) error {
	sugar := logging.Named("fetch")

	if rcloneConfig != "" {
		if err := config.SetConfigPath(rcloneConfig); err != nil {
			return fmt.Errorf("invalid rclone config path %q: %w", rcloneConfig, err)
		}
		sugar.Debugf("Using rclone config %s", rcloneConfig)
	}
	rcloneConfigOnce.Do(configfile.Install)

	parent, leaf, err := fspath.Split(remote)
	if err != nil {
		return fmt.Errorf("invalid rclone path %q: %w", remote, err)
	}
	if leaf == "" {
		return fmt.Errorf("rclone path %q does not name a file", remote)
	}

	sugar.Infof("Fetching %s via rclone", remote)
	startTime := time.Now()

	fsrc, err := fs.NewFs(ctx, parent)
	if err != nil {
		return fmt.Errorf("failed to open rclone source %q: %w", parent, err)
	}

	fdst, err := fs.NewFs(ctx, localDir)
	if err != nil {
		return fmt.Errorf("failed to open local directory %q: %w", localDir, err)
	}

	if err := operations.CopyFile(ctx, fdst, fsrc, leaf, leaf); err != nil {
		return err
	}

	sugar.Infof("Download completed in %s", time.Since(startTime).Round(time.Millisecond))
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"crusader-launcher/internal/bundle"
	"crusader-launcher/internal/fetch"
	"crusader-launcher/internal/logging"
	"crusader-launcher/internal/natives"
	"crusader-launcher/internal/platform"
	"crusader-launcher/internal/ui"

	"github.com/rclone/rclone/fs"
	"github.com/spf13/cobra"
)

func newPlatformCmd(g *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "platform",
		Short: "Show the detected platform and its native library directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				var rows [][]string
				for _, p := range platform.All() {
					cfg := g.nativesFor(p)
					rows = append(rows, []string{p.String(), p.NativeDirName(), p.LibraryExtension(), p.LibrarySearchEnv(), cfg.LibraryPath})
				}
				fmt.Println(ui.Table([]string{"Platform", "Directory", "Extension", "Search env", "Path"}, rows))
				return nil
			}

			cfg, err := g.resolve()
			if err != nil {
				return err
			}
			_, statErr := os.Stat(cfg.Dir())
			fmt.Print(ui.KeyValues("",
				ui.KV("OS name", g.identifier()),
				ui.KV("Platform", ui.Accent(cfg.Platform.String())),
				ui.KV("Native dir", cfg.LibraryPath),
				ui.KV("Present", strconv.FormatBool(statErr == nil)),
				ui.KV("Search env", cfg.Platform.LibrarySearchEnv()),
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List every supported platform")
	return cmd
}

func newPackCmd(g *globalOptions) *cobra.Command {
	var (
		platformDir string
		compression int
		output      string
	)

	cmd := &cobra.Command{
		Use:   "pack [source-dir]",
		Short: "Archive a native library directory into a bundle",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if compression < 0 || compression > 9 {
				return fmt.Errorf("compression level must be between 0 and 9, got %d", compression)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.platformFlag(platformDir)
			if err != nil {
				return err
			}

			src := cfg.Dir()
			if len(args) == 1 {
				src = args[0]
			}
			if output == "" {
				output = filepath.Join(g.workDir, bundle.FileName(cfg.Platform))
			}

			stats, err := bundle.Pack(src, output, compression, cfg.Platform)
			if err != nil {
				return fmt.Errorf("failed to pack natives: %w", err)
			}

			fmt.Println(ui.SuccessMsg("Packed %d files (%s, %d skipped) into %s",
				stats.Files, fs.SizeSuffix(stats.Bytes).String(), stats.Skipped, output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&platformDir, "platform", "p", "", "Platform directory to pack (windows, macosx or linux)")
	cmd.Flags().IntVarP(&compression, "compression", "c", 6, "Compression level (0-9)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Bundle path; the extension picks the format (.tar.gz, .tar.zst or .zip)")
	return cmd
}

func newUnpackCmd(g *globalOptions) *cobra.Command {
	var (
		platformDir string
		dest        string
	)

	cmd := &cobra.Command{
		Use:   "unpack <bundle>",
		Short: "Extract a native bundle into the platform's native library directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.platformFlag(platformDir)
			if err != nil {
				return err
			}
			return unpackInto(args[0], dest, cfg)
		},
	}

	cmd.Flags().StringVarP(&platformDir, "platform", "p", "", "Platform the bundle belongs to (windows, macosx or linux)")
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "Destination directory (defaults to the platform's native directory)")
	return cmd
}

func unpackInto(archive, dest string, cfg natives.Config) error {
	if dest == "" {
		dest = cfg.Dir()
	}

	stats, err := bundle.Unpack(archive, dest, cfg.Platform)
	if err != nil {
		return fmt.Errorf("failed to unpack natives: %w", err)
	}

	fmt.Println(ui.SuccessMsg("Unpacked %d files (%s) into %s", stats.Files, fs.SizeSuffix(stats.Bytes).String(), dest))
	if stats.Skipped > 0 {
		fmt.Println(ui.WarnMsg("Skipped %d ignored entries", stats.Skipped))
	}
	return nil
}

type fetchOptions struct {
	method       string
	sshHost      string
	sshPort      string
	sshUser      string
	sshPassword  string
	sshKeyFile   string
	rcloneConfig string
	downloadDir  string
	platformDir  string
	unpack       bool
	keep         bool
}

// fetchBundle downloads req and, when asked, unpacks it into cfg's native
// directory. The bundle is removed after unpacking unless keep is set.
func fetchBundle(ctx context.Context, req fetch.Request, cfg natives.Config, unpack, keep bool) (string, error) {
	sugar := logging.Named("fetch")

	fmt.Println(ui.InfoMsg("Fetching %s via %s", req.Remote, req.Method))
	localPath, err := fetch.Fetch(ctx, req)
	if err != nil {
		return "", err
	}
	fmt.Println(ui.SuccessMsg("Downloaded %s", localPath))

	if !unpack {
		return localPath, nil
	}
	if err := unpackInto(localPath, "", cfg); err != nil {
		return localPath, err
	}
	if !keep {
		if err := os.Remove(localPath); err != nil {
			sugar.Warnf("Failed to clean up bundle: %v", err)
		} else {
			sugar.Debugf("Removed bundle: %s", localPath)
		}
	}
	return localPath, nil
}

func newFetchCmd(g *globalOptions) *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch [remote]",
		Short: "Download a native bundle over rclone, SFTP or SCP",
		Long: "Download a native bundle. A remote ending in \"/\" gets the platform's bundle name appended.\n" +
			"Methods: rclone (remote like \"drive:crusader/\"), sftp, goph, scp and scp-binary (remote is a path on the SSH host).",
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Config values fill in whatever the flags left unset
			f := g.cfg.Fetch
			if !cmd.Flags().Changed("method") && f.Method != "" {
				opts.method = f.Method
			}
			if opts.sshHost == "" {
				opts.sshHost = f.SSH.Host
			}
			if !cmd.Flags().Changed("ssh-port") && f.SSH.Port != "" {
				opts.sshPort = f.SSH.Port
			}
			if opts.sshUser == "" {
				opts.sshUser = f.SSH.User
			}
			if opts.sshKeyFile == "" {
				opts.sshKeyFile = f.SSH.KeyFile
			}
			if opts.rcloneConfig == "" {
				opts.rcloneConfig = f.RcloneConfig
			}
			if opts.keep && !opts.unpack {
				return errors.New("--keep only applies together with --unpack")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.platformFlag(opts.platformDir)
			if err != nil {
				return err
			}

			method, err := fetch.ParseMethod(opts.method)
			if err != nil {
				return err
			}

			remote := g.cfg.Fetch.Remote
			if len(args) == 1 {
				remote = args[0]
			}
			if remote == "" {
				return errors.New("no remote given and fetch.remote is not configured")
			}
			if strings.HasSuffix(remote, "/") || strings.HasSuffix(remote, ":") {
				remote += bundle.FileName(cfg.Platform)
			}

			downloadDir := opts.downloadDir
			if downloadDir == "" {
				downloadDir = filepath.Join(g.workDir, "downloads")
			}

			req := fetch.Request{
				Method: method,
				Remote: remote,
				SSH: fetch.SSHConfig{
					Host:     opts.sshHost,
					Port:     opts.sshPort,
					User:     opts.sshUser,
					Password: opts.sshPassword,
					KeyFile:  opts.sshKeyFile,
				},
				LocalDir:     downloadDir,
				Verbose:      g.verbose,
				RcloneConfig: opts.rcloneConfig,
			}

			_, err = fetchBundle(cmd.Context(), req, cfg, opts.unpack, opts.keep)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.method, "method", "m", string(fetch.MethodRclone), "Transfer method: rclone, sftp, goph, scp or scp-binary")
	cmd.Flags().StringVar(&opts.sshHost, "ssh-host", "", "SSH host serving the bundle")
	cmd.Flags().StringVar(&opts.sshPort, "ssh-port", fetch.DefaultSSHPort, "SSH port")
	cmd.Flags().StringVar(&opts.sshUser, "ssh-user", "", "SSH username (defaults to "+fetch.DefaultSSHUser+")")
	cmd.Flags().StringVar(&opts.sshPassword, "ssh-password", "", "SSH password (not recommended, use key file instead)")
	cmd.Flags().StringVar(&opts.sshKeyFile, "ssh-key", "", "SSH private key file path (defaults to SSH agent)")
	cmd.Flags().StringVar(&opts.rcloneConfig, "rclone-config", "", "rclone config file (defaults to rclone's own lookup)")
	cmd.Flags().StringVar(&opts.downloadDir, "download-dir", "", "Where to store the bundle (defaults to ./downloads)")
	cmd.Flags().StringVarP(&opts.platformDir, "platform", "p", "", "Platform to fetch natives for (windows, macosx or linux)")
	cmd.Flags().BoolVar(&opts.unpack, "unpack", false, "Unpack the bundle into the native directory after downloading")
	cmd.Flags().BoolVar(&opts.keep, "keep", false, "Keep the bundle after unpacking")
	return cmd
}

func newVerifyCmd(g *globalOptions) *cobra.Command {
	var platformDir string

	cmd := &cobra.Command{
		Use:   "verify [library...]",
		Short: "List the native libraries present and check the required ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.platformFlag(platformDir)
			if err != nil {
				return err
			}

			required := args
			if len(required) == 0 {
				required = g.cfg.Game.Required
			}

			libs, err := natives.List(cfg.Dir(), cfg.Platform)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(libs))
			for _, lib := range libs {
				rows = append(rows, []string{lib.Name, filepath.Base(lib.Path), fs.SizeSuffix(lib.Size).String()})
			}
			if len(rows) > 0 {
				fmt.Println(ui.Table([]string{"Library", "File", "Size"}, rows))
			} else {
				fmt.Println(ui.WarnMsg("No native libraries in %s", cfg.Dir()))
			}

			missing, err := natives.Verify(cfg, required)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				for _, name := range missing {
					fmt.Println(ui.ErrorMsg("Missing %s", cfg.Platform.LibraryFileName(name)))
				}
				return fmt.Errorf("%d of %d required native libraries missing for %s", len(missing), len(required), cfg.Platform)
			}
			if len(required) > 0 {
				fmt.Println(ui.SuccessMsg("All %d required libraries present for %s", len(required), cfg.Platform))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&platformDir, "platform", "p", "", "Platform directory to check (windows, macosx or linux)")
	return cmd
}

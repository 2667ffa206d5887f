package main

import (
	"fmt"
	"log"
	"os"

	"crusader-launcher/internal/config"
	"crusader-launcher/internal/logging"
	"crusader-launcher/internal/natives"
	"crusader-launcher/internal/platform"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	gitCommit = "none"
	buildTime = "unknown"
)

type globalOptions struct {
	verbose    bool
	configFile string
	osName     string
	workDir    string

	cfg *config.Config
}

// identifier returns the OS name to resolve: flag, then config, then host
func (g *globalOptions) identifier() string {
	if g.osName != "" {
		return g.osName
	}
	if g.cfg != nil && g.cfg.OSName != "" {
		return g.cfg.OSName
	}
	return platform.HostIdentifier()
}

func (g *globalOptions) nativeBaseDir() string {
	if g.cfg != nil && g.cfg.NativeDir != "" {
		return g.cfg.NativeDir
	}
	return platform.DefaultNativeBaseDir
}

// resolve returns the native configuration for the current identifier
func (g *globalOptions) resolve() (natives.Config, error) {
	p, err := platform.Resolve(g.identifier())
	if err != nil {
		return natives.Config{}, err
	}
	return g.nativesFor(p), nil
}

func (g *globalOptions) nativesFor(p platform.Platform) natives.Config {
	return natives.Config{
		LibraryPath: platform.NativeLibraryPath(g.workDir, g.nativeBaseDir(), p),
		Platform:    p,
	}
}

// platformFlag resolves an explicit --platform directory name, or the current platform
func (g *globalOptions) platformFlag(dirName string) (natives.Config, error) {
	if dirName == "" {
		return g.resolve()
	}
	p, err := platform.ParseDirName(dirName)
	if err != nil {
		return natives.Config{}, err
	}
	return g.nativesFor(p), nil
}

func main() {
	var opts globalOptions

	if err := logging.InitLogger(false); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.SyncLogger()

	rootCmd := &cobra.Command{
		Use:           "crusader-natives",
		Short:         "Inspect, package and download the game's native libraries",
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s)", version, gitCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.workDir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to determine working directory: %w", err)
				}
				opts.workDir = wd
			}

			cfg, err := config.Load(opts.workDir, opts.configFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			if err := logging.InitLogger(opts.verbose || cfg.Verbose || logging.VerboseFromEnv()); err != nil {
				return fmt.Errorf("failed to reinitialize logger: %w", err)
			}
			if cfg.File != "" {
				logging.GetSugar().Debugf("Using config file %s", cfg.File)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (defaults to ./crusader.yaml or ~/.crusader/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.osName, "os-name", "", "OS name to resolve instead of the host's (e.g. \"Windows 10\")")
	rootCmd.PersistentFlags().StringVarP(&opts.workDir, "dir", "C", "", "Game directory (defaults to the current directory)")

	rootCmd.AddCommand(
		newPlatformCmd(&opts),
		newPackCmd(&opts),
		newUnpackCmd(&opts),
		newFetchCmd(&opts),
		newVerifyCmd(&opts),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

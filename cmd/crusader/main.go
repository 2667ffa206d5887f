package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"crusader-launcher/internal/config"
	"crusader-launcher/internal/launcher"
	"crusader-launcher/internal/logging"
	"crusader-launcher/internal/platform"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	gitCommit = "none"
	buildTime = "unknown"
)

// newRootCmd wraps run in a command that never interprets gameArgs. cobra is
// executed without arguments so that even its hidden completion command
// cannot claim them.
func newRootCmd(gameArgs []string, run func(ctx context.Context, args []string) error) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:                "crusader [game arguments]",
		Short:              "Resolve the native library directory for this OS and start the game",
		Long:               fmt.Sprintf("crusader %s (commit: %s, built at: %s)", version, gitCommit, buildTime),
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Args:               cobra.NoArgs,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), gameArgs)
		},
	}
	rootCmd.SetArgs([]string{})
	return rootCmd
}

func main() {
	// Arguments belong to the game, so verbosity comes from the environment
	if err := logging.InitLogger(logging.VerboseFromEnv()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	code := 0
	rootCmd := newRootCmd(os.Args[1:], func(ctx context.Context, args []string) error {
		workDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		code, err = launch(ctx, workDir, args)
		return err
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.SyncLogger()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

// resolvePlatform runs before anything else is initialized. An identifier in the
// environment is resolved before the config file is read; os_name from the file
// is only consulted when the environment is silent. A config file that cannot
// be read is reported only after the host platform resolved.
func resolvePlatform(workDir string) (platform.Platform, *config.Config, error) {
	if identifier := os.Getenv(platform.OSNameEnv); identifier != "" {
		p, err := platform.Resolve(identifier)
		if err != nil {
			return 0, nil, err
		}
		cfg, err := config.Load(workDir, "")
		return p, cfg, err
	}

	cfg, cfgErr := config.Load(workDir, "")
	identifier := platform.HostIdentifier()
	if cfgErr == nil && cfg.OSName != "" {
		identifier = cfg.OSName
	}

	p, err := platform.Resolve(identifier)
	if err != nil {
		return 0, nil, err
	}
	return p, cfg, cfgErr
}

// launch returns the game's exit code, or an error when the launcher itself failed
func launch(ctx context.Context, workDir string, args []string) (int, error) {
	sugar := logging.GetSugar()

	p, cfg, err := resolvePlatform(workDir)
	if err != nil {
		return 0, err
	}
	if cfg.Verbose {
		logging.SetVerbose(true)
	}
	if cfg.File != "" {
		sugar.Debugf("Using config file %s", cfg.File)
	}

	if err := cfg.Validate(); err != nil {
		return 0, fmt.Errorf("invalid configuration: %w", err)
	}

	nativesCfg, err := launcher.NativesConfig(workDir, cfg.NativeDir, p)
	if err != nil {
		return 0, err
	}

	var entry launcher.EntryPoint
	switch cfg.Game.Mode {
	case config.ModeCommand:
		entry = launcher.CommandEntryPoint{
			Program: cfg.Command.Program,
			Args:    cfg.Command.Args,
			Dir:     workDir,
		}
	default:
		entry = launcher.JavaEntryPoint{
			Java:       cfg.Java.Bin,
			ClassPath:  cfg.Java.ClassPath,
			MainClass:  cfg.Java.MainClass,
			JVMOptions: cfg.Java.Options,
			Dir:        workDir,
		}
	}

	err = launcher.Start(ctx, nativesCfg, cfg.Game.Required, entry, args)
	var exitErr *launcher.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, nil
	}
	return 0, err
}

package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"crusader-launcher/internal/logging"
	"crusader-launcher/internal/natives"
)

// ExitError reports that the game process exited with a non-zero code
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("game exited with code %d", e.Code)
}

// JavaEntryPoint starts the game on a JVM. The native directory is handed over
// as org.lwjgl.librarypath and java.library.path.
type JavaEntryPoint struct {
	Java       string
	ClassPath  []string
	MainClass  string
	JVMOptions []string
	Dir        string
}

// Command builds the JVM command line for the game
func (j JavaEntryPoint) Command(ctx context.Context, cfg natives.Config, args []string) *exec.Cmd {
	dir := cfg.Dir()
	java := j.Java
	if java == "" {
		java = "java"
	}

	jvmArgs := append([]string{}, j.JVMOptions...)
	jvmArgs = append(jvmArgs,
		"-Dorg.lwjgl.librarypath="+dir,
		"-Djava.library.path="+dir,
	)
	if len(j.ClassPath) > 0 {
		jvmArgs = append(jvmArgs, "-cp", strings.Join(j.ClassPath, string(os.PathListSeparator)))
	}
	jvmArgs = append(jvmArgs, j.MainClass)
	jvmArgs = append(jvmArgs, args...)

	cmd := exec.CommandContext(ctx, java, jvmArgs...)
	cmd.Dir = j.Dir
	cmd.Env = libraryEnv(os.Environ(), cfg)
	return cmd
}

func (j JavaEntryPoint) Run(ctx context.Context, loader *natives.Loader, args []string) error {
	cmd := j.Command(ctx, loader.Config(), args)
	logging.Named("launcher").Infof("Launching %s with natives from %s", j.MainClass, loader.Config().Dir())
	return runProcess(cmd)
}

// CommandEntryPoint starts a native game binary with the native directory
// prepended to the platform's library search variable
type CommandEntryPoint struct {
	Program string
	Args    []string
	Dir     string
}

// Command builds the process for the game binary; configured Args come first
func (c CommandEntryPoint) Command(ctx context.Context, cfg natives.Config, args []string) *exec.Cmd {
	all := append(append([]string{}, c.Args...), args...)
	cmd := exec.CommandContext(ctx, c.Program, all...)
	cmd.Dir = c.Dir
	cmd.Env = libraryEnv(os.Environ(), cfg)
	return cmd
}

func (c CommandEntryPoint) Run(ctx context.Context, loader *natives.Loader, args []string) error {
	cmd := c.Command(ctx, loader.Config(), args)
	logging.Named("launcher").Infof("Launching %s with natives from %s", filepath.Base(c.Program), loader.Config().Dir())
	return runProcess(cmd)
}

func runProcess(cmd *exec.Cmd) error {
	sugar := logging.Named("launcher")
	sugar.Debugf("Running: %v", cmd.Args)

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to run game: %w", err)
	}
	return nil
}

// libraryEnv prepends the native directory to the platform's search variable
func libraryEnv(env []string, cfg natives.Config) []string {
	key := cfg.Platform.LibrarySearchEnv()
	value := cfg.Dir()
	if existing := lookupEnv(env, key); existing != "" {
		value = value + string(os.PathListSeparator) + existing
	}
	return setEnvVar(env, key, value)
}

// hasEnvKey reports whether the KEY=value entry e sets key. Names are case
// insensitive on Windows.
func hasEnvKey(e, key string) bool {
	name, _, ok := strings.Cut(e, "=")
	if !ok {
		return false
	}
	if runtime.GOOS == "windows" {
		return strings.EqualFold(name, key)
	}
	return name == key
}

func lookupEnv(env []string, key string) string {
	for _, e := range env {
		if hasEnvKey(e, key) {
			_, value, _ := strings.Cut(e, "=")
			return value
		}
	}
	return ""
}

// setEnvVar sets or updates an environment variable in the env slice
func setEnvVar(env []string, key, value string) []string {
	entry := key + "=" + value
	out := make([]string, 0, len(env)+1)
	found := false
	for _, e := range env {
		if hasEnvKey(e, key) {
			if !found {
				out = append(out, entry)
				found = true
			}
			continue
		}
		out = append(out, e)
	}
	if !found {
		out = append(out, entry)
	}
	return out
}

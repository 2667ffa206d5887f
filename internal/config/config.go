package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const (
	fileName  = "crusader"
	fileType  = "yaml"
	envPrefix = "CRUSADER"

	// FileEnv points at an explicit config file
	FileEnv = "CRUSADER_CONFIG"
)

// Game modes
const (
	ModeJava    = "java"
	ModeCommand = "command"
)

// Config is the launcher configuration
type Config struct {
	Verbose   bool          `mapstructure:"verbose"`
	OSName    string        `mapstructure:"os_name"`
	NativeDir string        `mapstructure:"native_dir"`
	Game      GameConfig    `mapstructure:"game"`
	Java      JavaConfig    `mapstructure:"java"`
	Command   CommandConfig `mapstructure:"command"`
	Fetch     FetchConfig   `mapstructure:"fetch"`

	// File is the config file that was read, empty when running on defaults
	File string `mapstructure:"-"`
}

// GameConfig selects how the game is started
type GameConfig struct {
	Mode     string   `mapstructure:"mode"`
	Required []string `mapstructure:"required_natives"`
}

// JavaConfig describes a JVM game launch
type JavaConfig struct {
	Bin       string   `mapstructure:"bin"`
	ClassPath []string `mapstructure:"classpath"`
	MainClass string   `mapstructure:"main_class"`
	Options   []string `mapstructure:"options"`
}

// CommandConfig describes a native game binary launch
type CommandConfig struct {
	Program string   `mapstructure:"program"`
	Args    []string `mapstructure:"args"`
}

// FetchConfig holds defaults for downloading native bundles
type FetchConfig struct {
	Method       string    `mapstructure:"method"`
	Remote       string    `mapstructure:"remote"`
	RcloneConfig string    `mapstructure:"rclone_config"`
	SSH          SSHConfig `mapstructure:"ssh"`
}

// SSHConfig holds SSH defaults for bundle downloads
type SSHConfig struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	KeyFile string `mapstructure:"key_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)
	v.SetDefault("os_name", "")
	v.SetDefault("native_dir", "lib/native")
	v.SetDefault("game.mode", ModeJava)
	v.SetDefault("game.required_natives", []string{})
	v.SetDefault("java.bin", "java")
	v.SetDefault("java.classpath", []string{"crusader.jar", "lib/*"})
	v.SetDefault("java.main_class", "game.Main")
	v.SetDefault("java.options", []string{})
	v.SetDefault("command.program", "")
	v.SetDefault("command.args", []string{})
	v.SetDefault("fetch.method", "rclone")
	v.SetDefault("fetch.remote", "")
	v.SetDefault("fetch.rclone_config", "")
	v.SetDefault("fetch.ssh.host", "")
	v.SetDefault("fetch.ssh.port", "22")
	v.SetDefault("fetch.ssh.user", "")
	v.SetDefault("fetch.ssh.key_file", "")
}

// HomeDir returns ~/.crusader
func HomeDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(".", ".crusader")
	}
	return filepath.Join(home, ".crusader")
}

// candidates lists config files in lookup order
func candidates(workDir string) []string {
	return []string{
		filepath.Join(workDir, fileName+"."+fileType),
		filepath.Join(HomeDir(), "config."+fileType),
	}
}

// Load reads configuration from an explicit file, CRUSADER_CONFIG,
// <workDir>/crusader.yaml or ~/.crusader/config.yaml, in that order.
// CRUSADER_* environment variables override file values.
func Load(workDir, explicitFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(fileType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitFile == "" {
		explicitFile = os.Getenv(FileEnv)
	}

	file := ""
	if explicitFile != "" {
		expanded, err := homedir.Expand(explicitFile)
		if err != nil {
			return nil, fmt.Errorf("expanding config path %s: %w", explicitFile, err)
		}
		if _, err := os.Stat(expanded); err != nil {
			return nil, fmt.Errorf("config file %s: %w", expanded, err)
		}
		file = expanded
	} else {
		for _, c := range candidates(workDir) {
			if _, err := os.Stat(c); err == nil {
				file = c
				break
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = file
	return &cfg, nil
}

// Validate checks the game settings. It runs after platform resolution.
func (c *Config) Validate() error {
	switch c.Game.Mode {
	case ModeJava:
		if c.Java.MainClass == "" {
			return errors.New("java.main_class is required in java mode")
		}
	case ModeCommand:
		if c.Command.Program == "" {
			return errors.New("command.program is required in command mode")
		}
	default:
		return fmt.Errorf("unknown game.mode %q (expected %s or %s)", c.Game.Mode, ModeJava, ModeCommand)
	}
	return nil
}

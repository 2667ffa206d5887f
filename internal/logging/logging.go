package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// VerboseEnv turns on debug logging before any flag or config file is read
const VerboseEnv = "CRUSADER_VERBOSE"

var (
	sugar        *zap.SugaredLogger
	logger       *zap.Logger
	loggerOnce   sync.Once
	currentLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	nop          = zap.NewNop()
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[37m"
)

func coloredLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var levelStr string

	switch l {
	case zapcore.DebugLevel:
		levelStr = colorCyan + "DEBUG" + colorReset
	case zapcore.InfoLevel:
		levelStr = colorGreen + "INFO" + colorReset
	case zapcore.WarnLevel:
		levelStr = colorYellow + "WARN" + colorReset
	case zapcore.ErrorLevel:
		levelStr = colorRed + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel:
		levelStr = colorPurple + l.CapitalString() + colorReset
	case zapcore.FatalLevel:
		levelStr = colorRed + "FATAL" + colorReset
	default:
		levelStr = colorGray + l.String() + colorReset
	}

	enc.AppendString(levelStr)
}

// InitLogger builds the launcher logger on first use and adjusts its level afterwards.
// Output goes to stderr so the game keeps stdout to itself.
func InitLogger(verbose bool) error {
	var err error
	loggerOnce.Do(func() {
		config := zap.NewDevelopmentConfig()
		config.Level = currentLevel
		config.DisableStacktrace = true
		config.OutputPaths = []string{"stderr"}
		config.ErrorOutputPaths = []string{"stderr"}

		config.EncoderConfig.EncodeLevel = coloredLevelEncoder
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		logger, err = config.Build()
		if err != nil {
			return
		}
		sugar = logger.Sugar()
	})

	SetVerbose(verbose)
	return err
}

// SetVerbose switches between debug and info level without rebuilding the logger
func SetVerbose(verbose bool) {
	if verbose {
		currentLevel.SetLevel(zap.DebugLevel)
	} else {
		currentLevel.SetLevel(zap.InfoLevel)
	}
}

// VerboseFromEnv reports whether CRUSADER_VERBOSE asks for debug output
func VerboseFromEnv() bool {
	switch os.Getenv(VerboseEnv) {
	case "1", "true", "TRUE", "yes":
		return true
	default:
		return false
	}
}

// GetLogger returns the launcher logger, or a no-op logger before InitLogger
func GetLogger() *zap.Logger {
	if logger == nil {
		return nop
	}
	return logger
}

// GetSugar returns the sugared launcher logger
func GetSugar() *zap.SugaredLogger {
	if sugar == nil {
		return nop.Sugar()
	}
	return sugar
}

// Named returns a sugared logger scoped to a component
func Named(component string) *zap.SugaredLogger {
	return GetSugar().Named(component)
}

// SyncLogger flushes any buffered log entries
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync() // stderr sync fails on some terminals
	}
}

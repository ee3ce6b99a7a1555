// Package logger wraps logrus behind a small package-level API so every
// component logs through one configured instance.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger is the shared log instance.
var Logger *logrus.Logger

// Config controls level, format and output of the shared logger.
type Config struct {
	// Level is one of debug, info, warn, error, fatal, panic.
	Level string
	// Format is "json" or "text".
	Format string
	// Output is "console", "file" or "both".
	Output string
	// FilePath is the log file used by the file and both outputs.
	FilePath string
}

// DefaultConfig returns the configuration used when Init is never called.
func DefaultConfig() *Config {
	return &Config{
		Level:    "info",
		Format:   "text",
		Output:   "console",
		FilePath: "logs/ingestd.log",
	}
}

// Init builds the shared logger from cfg. A nil cfg selects DefaultConfig.
func Init(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	Logger = logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		Logger.Warnf("invalid log level %q, falling back to info", cfg.Level)
	}
	Logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if err := setupOutput(cfg); err != nil {
		return err
	}

	setupGinLogger()
	return nil
}

func setupOutput(cfg *Config) error {
	switch cfg.Output {
	case "file":
		logFile, err := openLogFile(cfg.FilePath)
		if err != nil {
			return err
		}
		Logger.SetOutput(logFile)
	case "both":
		logFile, err := openLogFile(cfg.FilePath)
		if err != nil {
			return err
		}
		Logger.SetOutput(io.MultiWriter(os.Stdout, logFile))
	default:
		Logger.SetOutput(os.Stdout)
	}
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// setupGinLogger routes gin's default writers through the shared logger.
func setupGinLogger() {
	w := &ginLogWriter{logger: Logger}
	gin.DefaultWriter = w
	gin.DefaultErrorWriter = w
}

type ginLogWriter struct {
	logger *logrus.Logger
}

func (w *ginLogWriter) Write(p []byte) (int, error) {
	w.logger.Info(string(p))
	return len(p), nil
}

// GetLogger returns the shared instance, initializing it with defaults when
// Init has not run (tests mostly).
func GetLogger() *logrus.Logger {
	if Logger == nil {
		if err := Init(nil); err != nil {
			return logrus.StandardLogger()
		}
	}
	return Logger
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

// Infof logs at info level.
func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

// Info logs at info level.
func Info(args ...interface{}) {
	GetLogger().Info(args...)
}

// Warnf logs at warn level.
func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// Fatalf logs at fatal level and exits.
func Fatalf(format string, args ...interface{}) {
	GetLogger().Fatalf(format, args...)
}

// WithFields returns an entry carrying structured fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

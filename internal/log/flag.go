package log

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterLoggingFlags adds the logging flags to the given flag set.
func RegisterLoggingFlags(flags *pflag.FlagSet) {
	flags.String("loglevel", "warn", "set the log level (debug, info, warn, error)")
	flags.String("logformat", "text", "set the log format (text, json)")
}

// GetBaseLogger builds the process logger from the logging flags of cmd.
func GetBaseLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := getLoggerLevel(cmd)
	if err != nil {
		return nil, err
	}

	format := cmd.Flag("logformat").Value.String()
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: level,
		})
	case "text":
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: level,
		})
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	return slog.New(handler), nil
}

func getLoggerLevel(cmd *cobra.Command) (slog.Level, error) {
	var level slog.Level
	switch logLevel := cmd.Flag("loglevel").Value.String(); logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return slog.LevelWarn, fmt.Errorf("invalid log level: %s", logLevel)
	}
	return level, nil
}

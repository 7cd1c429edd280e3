package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// logger backs the log helpers below. It discards output until setLogger is
// called during startup.
var logger = zap.NewNop().Sugar()

// setLogger replaces the package logger.
func setLogger(l *zap.SugaredLogger) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	logger = l
}

// dirExists returns true if the given path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		logWarn("Error checking directory existence: %v", err)
		return false
	}
	return info.IsDir()
}

// formatUptime returns a human-readable string for a duration.
func formatUptime(d time.Duration) string {
	seconds := int(d.Seconds()) % 60
	minutes := int(d.Minutes()) % 60
	hours := int(d.Hours())
	switch {
	case hours > 0:
		return fmt.Sprintf("%d hour%s, %d minute%s, %d second%s",
			hours, plural(hours),
			minutes, plural(minutes),
			seconds, plural(seconds))
	case minutes > 0:
		return fmt.Sprintf("%d minute%s, %d second%s",
			minutes, plural(minutes),
			seconds, plural(seconds))
	default:
		return fmt.Sprintf("%d second%s", seconds, plural(seconds))
	}
}

// plural returns "s" if n != 1, otherwise "".
func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// isHTMX reports whether the request came from an htmx swap.
func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// logDebug logs a debug-level message.
func logDebug(format string, v ...any) {
	logger.Debugf(format, v...)
}

// logInfo logs an info-level message.
func logInfo(format string, v ...any) {
	logger.Infof(format, v...)
}

// logWarn logs a warning-level message.
func logWarn(format string, v ...any) {
	logger.Warnf(format, v...)
}

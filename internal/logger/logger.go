// Package logger provides the logging facade used across ttsdeploy.
//
// The facade exposes printf-style leveled functions backed by logrus.
// Commands call SetVerbose() once during startup; everything else just
// logs through the package-level functions.
package logger

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.DateTime,
	})
	log.SetLevel(logrus.InfoLevel)
}

// SetVerbose enables debug-level output.
func SetVerbose(verbose bool) {
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects log output. Used by tests to silence or capture logs.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Debug logs a message at debug level.
func Debug(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Info logs a message at info level.
func Info(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warn logs a message at warning level.
func Warn(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Error logs a message at error level.
func Error(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

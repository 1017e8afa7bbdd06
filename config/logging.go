package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// LogWriter is the writer used for application, request and database logs.
var LogWriter io.Writer = os.Stdout

// LogFilePath returns the path to the backend log file.
func LogFilePath() string {
	return filepath.Join("logs", "taxforms-api.log")
}

// InitLogging prepares the log file and returns a logger writing to both
// stdout and the file. The returned file is nil when it could not be opened.
func InitLogging(production bool) (*logrus.Logger, *os.File) {
	logger := logrus.New()
	if production {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logPath := filepath.Dir(LogFilePath())
	if err := os.MkdirAll(logPath, os.ModePerm); err != nil {
		logger.WithError(err).Warn("Failed to create logs directory")
	}

	logFile, err := os.OpenFile(LogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.WithError(err).Warn("Failed to open log file")
		LogWriter = os.Stdout
		logger.SetOutput(LogWriter)
		return logger, nil
	}

	LogWriter = io.MultiWriter(os.Stdout, logFile)
	logger.SetOutput(LogWriter)
	return logger, logFile
}

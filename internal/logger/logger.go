package logger

import (
	"fieldsync/internal/config"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a new structured logger instance
func NewLogger(cfg *config.Config) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return &Logger{Logger: log}
}

// WithRecord adds record addressing context to log entries
func (l *Logger) WithRecord(collection, recordType, recordID string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"collection":  collection,
		"record_type": recordType,
		"record_id":   recordID,
	})
}

// WithUser adds user context to log entries
func (l *Logger) WithUser(userID string) *logrus.Entry {
	return l.WithField("user_id", userID)
}

// WithRequest adds request context to log entries
func (l *Logger) WithRequest(requestID string) *logrus.Entry {
	return l.WithField("request_id", requestID)
}

// WithPage adds UI page context to log entries
func (l *Logger) WithPage(pageID string) *logrus.Entry {
	return l.WithField("page_id", pageID)
}

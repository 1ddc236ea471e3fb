package invalidation

import (
	"learnlink-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
)

// LoggerAdapter routes watermill's internal logging into the app logger.
type LoggerAdapter struct {
	logger logger.ILogger
	fields watermill.LogFields
}

func NewLoggerAdapter(log logger.ILogger) watermill.LoggerAdapter {
	return &LoggerAdapter{logger: log}
}

func (a *LoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	details := a.merge(fields)
	if err != nil {
		details["error"] = err.Error()
	}
	a.logger.Error("WATERMILL", msg, details)
}

func (a *LoggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info("WATERMILL", msg, a.merge(fields))
}

func (a *LoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug("WATERMILL", msg, a.merge(fields))
}

// Trace is too chatty for the file log.
func (a *LoggerAdapter) Trace(msg string, fields watermill.LogFields) {}

func (a *LoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LoggerAdapter{logger: a.logger, fields: a.fields.Add(fields)}
}

func (a *LoggerAdapter) merge(fields watermill.LogFields) map[string]interface{} {
	details := make(map[string]interface{}, len(a.fields)+len(fields))
	for k, v := range a.fields {
		details[k] = v
	}
	for k, v := range fields {
		details[k] = v
	}
	return details
}

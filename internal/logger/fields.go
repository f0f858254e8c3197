package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldUser        = "user_id"
	FieldApplication = "application_id"
	FieldJob         = "job_id"
	FieldStatus      = "status"
	FieldSignal      = "signal_id"
	FieldOperation   = "operation"
	FieldProvider    = "ai_provider"
	FieldModel       = "ai_model"
)

// stringPairs turns key/value pairs into zap fields. Pairs with a blank key or
// value are dropped so entries stay compact.
func stringPairs(pairs ...string) []zap.Field {
	fields := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, value := strings.TrimSpace(pairs[i]), strings.TrimSpace(pairs[i+1])
		if key == "" || value == "" {
			continue
		}
		fields = append(fields, zap.String(key, value))
	}
	return fields
}

// WithFields attaches fields to log. A nil log becomes a no-op logger.
func WithFields(log *zap.Logger, fields ...zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

// ProviderFields describes the external classifier behind a log entry.
func ProviderFields(provider, model string) []zap.Field {
	return stringPairs(FieldProvider, provider, FieldModel, model)
}

func WithProvider(log *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(log, ProviderFields(provider, model)...)
}

// ApplicationFields describes an application in log entries. Empty values
// are dropped.
func ApplicationFields(applicationID, userID, status string) []zap.Field {
	return stringPairs(FieldApplication, applicationID, FieldUser, userID, FieldStatus, status)
}

func WithApplication(log *zap.Logger, applicationID, userID, status string) *zap.Logger {
	return WithFields(log, ApplicationFields(applicationID, userID, status)...)
}

// WithOperation tags every entry with the lifecycle operation name.
func WithOperation(log *zap.Logger, op string) *zap.Logger {
	return WithFields(log, stringPairs(FieldOperation, op)...)
}

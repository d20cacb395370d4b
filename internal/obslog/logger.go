// Package obslog provides a standardized logrus field-builder shared by
// every package in the core so log lines carry the same shape regardless of
// which component emitted them.
package obslog

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Helper accumulates structured fields for one logical operation and emits
// them through logrus.
type Helper struct {
	fields logrus.Fields
}

// New creates a Helper scoped to pkg/function.
func New(pkg, function string) *Helper {
	return &Helper{
		fields: logrus.Fields{
			"function": function,
			"package":  pkg,
		},
	}
}

// WithField attaches a single field.
func (h *Helper) WithField(key string, value interface{}) *Helper {
	h.fields[key] = value
	return h
}

// WithFields merges a set of fields.
func (h *Helper) WithFields(fields logrus.Fields) *Helper {
	for k, v := range fields {
		h.fields[k] = v
	}
	return h
}

// WithError records an error along with its classification and the
// operation that produced it.
func (h *Helper) WithError(err error, errorType, operation string) *Helper {
	h.fields["error"] = err.Error()
	h.fields["error_type"] = errorType
	h.fields["operation"] = operation
	return h
}

// Debug logs at debug level.
func (h *Helper) Debug(message string) { logrus.WithFields(h.fields).Debug(message) }

// Info logs at info level.
func (h *Helper) Info(message string) { logrus.WithFields(h.fields).Info(message) }

// Warn logs at warn level.
func (h *Helper) Warn(message string) { logrus.WithFields(h.fields).Warn(message) }

// Error logs at error level.
func (h *Helper) Error(message string) { logrus.WithFields(h.fields).Error(message) }

// SecureFieldHash returns a short, safe-to-log preview of sensitive bytes —
// never the full value, never enough to reconstruct key material.
func SecureFieldHash(data []byte, name string) logrus.Fields {
	preview := "nil"
	if len(data) > 0 {
		n := 8
		if len(data) < n {
			n = len(data)
		}
		preview = fmt.Sprintf("%x", data[:n])
		if len(data) > n {
			preview += "..."
		}
	}
	return logrus.Fields{
		name + "_preview": preview,
		name + "_size":    len(data),
	}
}

// OperationFields builds a standardized operation/status field set.
func OperationFields(operation, status string, additional ...logrus.Fields) logrus.Fields {
	fields := logrus.Fields{
		"operation": operation,
		"status":    status,
	}
	for _, extra := range additional {
		for k, v := range extra {
			fields[k] = v
		}
	}
	return fields
}

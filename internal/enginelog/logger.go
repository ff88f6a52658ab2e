// Package enginelog provides structured logging for every engine
// subsystem, adapted from the service layer's logrus-based Logger: same
// wrapper shape (embed *logrus.Logger, carry a component name, expose
// WithContext/WithFields), but the context keys and structured-logging
// helpers are rule-engine specific (rule/phase/transaction/connection)
// instead of HTTP-service specific.
package enginelog

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried through request-scoped
// loggers.
type ContextKey string

const (
	// ConnIDKey is the context key for the connection id.
	ConnIDKey ContextKey = "conn_id"
	// TxIDKey is the context key for the transaction id.
	TxIDKey ContextKey = "tx_id"
)

// Logger wraps logrus.Logger with engine-specific structured helpers.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a Logger for the given component ("engine", "enginemgr",
// "control", ...), with the given level ("debug"|"info"|"warn"|"error")
// and format ("json"|"text").
func New(component, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}
	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, component: component}
}

// NewFromEnv builds a Logger using ENGINE_LOG_LEVEL / ENGINE_LOG_FORMAT,
// defaulting to info/json when unset.
func NewFromEnv(component string) *Logger {
	level := strings.TrimSpace(os.Getenv("ENGINE_LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("ENGINE_LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(component, level, format)
}

// WithContext returns an entry carrying the connection/transaction ids
// found in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("component", l.component)
	if connID := ctx.Value(ConnIDKey); connID != nil {
		entry = entry.WithField("conn_id", connID)
	}
	if txID := ctx.Value(TxIDKey); txID != nil {
		entry = entry.WithField("tx_id", txID)
	}
	return entry
}

// WithFields returns an entry with the component field plus the given
// fields merged in.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["component"] = l.component
	return l.Logger.WithFields(fields)
}

// LogRuleReplacement logs a rule being replaced by a strictly-greater
// revision, per spec testable property 8.
func (l *Logger) LogRuleReplacement(ruleID string, oldRev, newRev int, phase string) {
	l.WithFields(logrus.Fields{
		"rule_id":      ruleID,
		"old_revision": oldRev,
		"new_revision": newRev,
		"phase":        phase,
	}).Info("rule replaced")
}

// LogRuleError logs a transformation/operator/action error encountered
// while evaluating a rule. Errors here never abort the phase; they are
// logged and the rule's own evaluation is aborted per spec §4.5/§7.
func (l *Logger) LogRuleError(ruleID string, phase string, stage string, err error) {
	l.WithFields(logrus.Fields{
		"rule_id": ruleID,
		"phase":   phase,
		"stage":   stage,
	}).WithError(err).Warn("rule evaluation error")
}

// LogBlock logs a block decision being enforced.
func (l *Logger) LogBlock(txID string, kind string, statusCode int) {
	l.WithFields(logrus.Fields{
		"tx_id":       txID,
		"block_kind":  kind,
		"status_code": statusCode,
	}).Warn("transaction blocked")
}

// WithError is a convenience identical to logrus's, kept so call sites
// read uniformly through this package instead of mixing logrus directly.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.WithFields(logrus.Fields{}).WithError(err)
}

var defaultLogger *Logger

// Default returns a lazily-initialized process-wide logger for call sites
// that have no engine/arena handle yet (e.g. package init, CLI bootstrap).
// Every subsystem that does own an arena/engine should instead receive its
// own *Logger via construction, not through this global.
func Default() *Logger {
	if defaultLogger == nil {
		defaultLogger = NewFromEnv("engine")
	}
	return defaultLogger
}

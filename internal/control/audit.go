package control

import "go.uber.org/zap"

// CommandAuditor is a separate, high-throughput structured log of every
// control-channel command received, independent of the engine's own
// logrus-based enginelog sink — grounded on the teacher's go.mod
// carrying both logrus and zap, each given its own concern (per
// SPEC_FULL.md's domain stack: zap backs this audit trail specifically
// because a busy control channel can be hit far more often than a rule
// evaluation error, and zap's allocation-free structured logging is
// built for that rate).
type CommandAuditor struct {
	logger *zap.Logger
}

// NewCommandAuditor builds a CommandAuditor using zap's production
// configuration (JSON output, info level).
func NewCommandAuditor() (*CommandAuditor, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &CommandAuditor{logger: logger}, nil
}

// LogCommand records one processed command and its outcome.
func (a *CommandAuditor) LogCommand(name string, args []string, outcome string) {
	a.logger.Info("control command",
		zap.String("command", name),
		zap.Strings("args", args),
		zap.String("outcome", outcome),
	)
}

// Close flushes the underlying zap logger.
func (a *CommandAuditor) Close() error {
	return a.logger.Sync()
}

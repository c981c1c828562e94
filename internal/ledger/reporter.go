package ledger

import "go.uber.org/zap"

// Reporter surfaces the outcome of user-initiated ledger operations.
// Background reloads never go through it.
type Reporter interface {
	Success(op string, message string)
	Failure(op string, err error)
}

// LogReporter reports through a logger. It is the default when no
// interactive surface is attached.
type LogReporter struct {
	logger *zap.Logger
}

func NewLogReporter(logger *zap.Logger) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Success(op string, message string) {
	r.logger.Info(message, zap.String("op", op))
}

func (r *LogReporter) Failure(op string, err error) {
	r.logger.Error("ledger operation failed", zap.String("op", op), zap.Error(err))
}

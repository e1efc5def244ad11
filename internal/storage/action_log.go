package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/self-healing/internal/model"
)

// Sink receives every healing action after it has been appended to the log
type Sink interface {
	Store(ctx context.Context, action *model.HealingAction) error
}

// ActionLogger appends healing action records to a newline-delimited JSON file.
// The file is opened for each record and closed right after, and every record
// is written with a single append so concurrent writers never interleave lines.
type ActionLogger struct {
	logger *zap.Logger
	path   string
	sinks  []Sink
	now    func() time.Time
}

// NewActionLogger creates an action logger writing to path
func NewActionLogger(path string, logger *zap.Logger, sinks ...Sink) *ActionLogger {
	return &ActionLogger{
		logger: logger.Named("action-logger"),
		path:   path,
		sinks:  sinks,
		now:    time.Now,
	}
}

// Path returns the healing-actions log location
func (l *ActionLogger) Path() string {
	return l.path
}

// Record appends one healing action. Failures are logged and never returned:
// a broken audit trail must not abort remediation processing.
func (l *ActionLogger) Record(ctx context.Context, alertName string, outcome model.Outcome, details string) *model.HealingAction {
	action := &model.HealingAction{
		Timestamp: l.now().Format(model.TimestampFormat),
		AlertName: alertName,
		Status:    outcome,
		Details:   details,
	}

	if err := l.append(action); err != nil {
		l.logger.Error("Failed to log healing action",
			zap.String("alert_name", alertName),
			zap.String("status", string(outcome)),
			zap.String("path", l.path),
			zap.Error(err))
	}

	for _, sink := range l.sinks {
		if err := sink.Store(ctx, action); err != nil {
			l.logger.Error("Failed to forward healing action",
				zap.String("alert_name", alertName),
				zap.String("sink", fmt.Sprintf("%T", sink)),
				zap.Error(err))
		}
	}

	return action
}

func (l *ActionLogger) append(action *model.HealingAction) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(action); err != nil {
		return fmt.Errorf("failed to encode healing action: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open healing actions log: %w", err)
	}

	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("failed to write healing action: %w", err)
	}
	return file.Close()
}

// Tail returns up to limit of the most recent records, newest first.
// Lines that cannot be decoded are skipped.
func (l *ActionLogger) Tail(limit int) ([]*model.HealingAction, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*model.HealingAction{}, nil
		}
		return nil, fmt.Errorf("failed to open healing actions log: %w", err)
	}
	defer file.Close()

	var actions []*model.HealingAction
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var action model.HealingAction
		if err := json.Unmarshal(line, &action); err != nil {
			l.logger.Warn("Skipping malformed healing action line", zap.Error(err))
			continue
		}
		actions = append(actions, &action)
		if limit > 0 && len(actions) > limit {
			actions = actions[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read healing actions log: %w", err)
	}

	for i, j := 0, len(actions)-1; i < j; i, j = i+1, j-1 {
		actions[i], actions[j] = actions[j], actions[i]
	}
	if actions == nil {
		actions = []*model.HealingAction{}
	}
	return actions, nil
}

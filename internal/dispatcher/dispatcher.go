// Package dispatcher routes the alerts of one webhook notification to their
// remediation playbooks.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/t77yq/self-healing/internal/metrics"
	"github.com/t77yq/self-healing/internal/model"
)

// Lookup resolves the playbook mapped to an alert name
type Lookup interface {
	Lookup(alertName string) (string, bool)
}

// Runner executes one remediation playbook
type Runner interface {
	Execute(ctx context.Context, playbook string, alert *model.Alert) (bool, *model.RemediationResult)
}

// Dispatcher processes webhook notifications
type Dispatcher struct {
	logger   *zap.Logger
	registry Lookup
	runner   Runner
}

// New creates a new dispatcher
func New(registry Lookup, runner Runner, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger.Named("dispatcher"),
		registry: registry,
		runner:   runner,
	}
}

// Handle processes the alerts of msg in the order received and returns the
// number of alerts in the batch. Remediations run synchronously, so Handle
// returns only after every triggered playbook has finished. An entry that is
// null or not an alert object stops the batch at its position; the alerts
// before it have already been processed.
func (d *Dispatcher) Handle(ctx context.Context, msg *model.WebhookMessage) (int, error) {
	d.logger.Info("Received webhook",
		zap.String("receiver", msg.Receiver),
		zap.String("group_key", msg.GroupKey),
		zap.String("status", msg.Status),
		zap.Int("alerts", len(msg.Alerts)))

	for i, raw := range msg.Alerts {
		alert, err := decodeAlert(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: alerts[%d]: %v", ErrInvalidAlert, i, err)
		}
		d.dispatch(ctx, alert)
	}

	return len(msg.Alerts), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, alert *model.Alert) {
	name := alert.Name()
	metrics.AlertsReceivedTotal.WithLabelValues(string(alert.Status)).Inc()

	d.logger.Info("Processing alert",
		zap.String("alert_name", name),
		zap.String("status", string(alert.Status)))

	switch alert.Status {
	case model.AlertStatusFiring:
		playbook, ok := d.registry.Lookup(name)
		if !ok {
			metrics.AlertsUnmappedTotal.Inc()
			d.logger.Info("No remediation mapped for alert", zap.String("alert_name", name))
			return
		}

		if ok, _ := d.runner.Execute(ctx, playbook, alert); ok {
			d.logger.Info("Successfully executed healing", zap.String("alert_name", name))
		} else {
			d.logger.Error("Failed to execute healing", zap.String("alert_name", name))
		}

	case model.AlertStatusResolved:
		d.logger.Info("Alert has been resolved", zap.String("alert_name", name))

	default:
		d.logger.Debug("Ignoring alert with unsupported status",
			zap.String("alert_name", name),
			zap.String("status", string(alert.Status)))
	}
}

func decodeAlert(raw json.RawMessage) (*model.Alert, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.New("entry is null")
	}

	var alert model.Alert
	if err := json.Unmarshal(trimmed, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

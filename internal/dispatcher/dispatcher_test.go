package dispatcher

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/t77yq/self-healing/internal/config"
	"github.com/t77yq/self-healing/internal/model"
	"github.com/t77yq/self-healing/internal/registry"
)

type call struct {
	playbook  string
	alertName string
	labels    model.Labels
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	ok    bool
}

func (r *fakeRunner) Execute(ctx context.Context, playbook string, alert *model.Alert) (bool, *model.RemediationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alertName := alert.Name()
	r.calls = append(r.calls, call{playbook: playbook, alertName: alertName, labels: alert.Labels})

	outcome := model.OutcomeFailed
	if r.ok {
		outcome = model.OutcomeSuccess
	}
	return r.ok, &model.RemediationResult{AlertName: alertName, Playbook: playbook, Outcome: outcome}
}

func firing(name string) *model.Alert {
	return &model.Alert{
		Status: model.AlertStatusFiring,
		Labels: model.Labels{model.LabelAlertName: name},
	}
}

// batch builds a notification from alerts; a nil alert encodes as null
// and a string is used as the raw entry
func batch(t *testing.T, alerts ...interface{}) *model.WebhookMessage {
	t.Helper()
	msg := &model.WebhookMessage{Alerts: []json.RawMessage{}}
	for _, a := range alerts {
		if raw, ok := a.(string); ok {
			msg.Alerts = append(msg.Alerts, json.RawMessage(raw))
			continue
		}
		data, err := json.Marshal(a)
		require.NoError(t, err)
		msg.Alerts = append(msg.Alerts, data)
	}
	return msg
}

func newDispatcher(t *testing.T, runner Runner) (*Dispatcher, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	reg := registry.New(config.DefaultRemediations())
	return New(reg, runner, zap.New(core)), logs
}

func TestDispatcher_FiringMapped(t *testing.T) {
	runner := &fakeRunner{ok: true}
	d, logs := newDispatcher(t, runner)

	alert := firing("NginxDown")
	alert.Labels[model.LabelInstance] = "web-1"

	n, err := d.Handle(context.Background(), batch(t, alert))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "/app/ansible/heal-nginx.yml", runner.calls[0].playbook)
	assert.Equal(t, "NginxDown", runner.calls[0].alertName)
	assert.Equal(t, "web-1", runner.calls[0].labels[model.LabelInstance])
	assert.Equal(t, 1, logs.FilterMessage("Successfully executed healing").Len())
}

func TestDispatcher_FailureIsNotAnError(t *testing.T) {
	runner := &fakeRunner{ok: false}
	d, logs := newDispatcher(t, runner)

	n, err := d.Handle(context.Background(), batch(t, firing("ContainerDown")))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, runner.calls, 1)
	assert.Equal(t, 1, logs.FilterMessage("Failed to execute healing").Len())
}

func TestDispatcher_Unmapped(t *testing.T) {
	runner := &fakeRunner{ok: true}
	d, logs := newDispatcher(t, runner)

	n, err := d.Handle(context.Background(), batch(t, firing("UnknownAlert")))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, runner.calls)
	assert.Equal(t, 1, logs.FilterMessage("No remediation mapped for alert").Len())
}

func TestDispatcher_Resolved(t *testing.T) {
	runner := &fakeRunner{ok: true}
	d, logs := newDispatcher(t, runner)

	alert := firing("NginxDown")
	alert.Status = model.AlertStatusResolved

	n, err := d.Handle(context.Background(), batch(t, alert))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, runner.calls)
	resolved := logs.FilterMessage("Alert has been resolved").All()
	require.Len(t, resolved, 1)
	assert.Equal(t, "NginxDown", resolved[0].ContextMap()["alert_name"])
}

func TestDispatcher_UnknownStatusSkipped(t *testing.T) {
	runner := &fakeRunner{ok: true}
	d, logs := newDispatcher(t, runner)

	alert := firing("NginxDown")
	alert.Status = "pending"

	n, err := d.Handle(context.Background(), batch(t, alert))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, runner.calls)

	skipped := logs.FilterMessage("Ignoring alert with unsupported status").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, zapcore.DebugLevel, skipped[0].Level)
}

func TestDispatcher_CaseSensitiveLookup(t *testing.T) {
	runner := &fakeRunner{ok: true}
	d, _ := newDispatcher(t, runner)

	_, err := d.Handle(context.Background(), batch(t, firing("nginxdown")))
	require.NoError(t, err)
	assert.Empty(t, runner.calls)
}

func TestDispatcher_MixedBatchInOrder(t *testing.T) {
	runner := &fakeRunner{ok: true}
	d, _ := newDispatcher(t, runner)

	resolved := firing("ContainerDown")
	resolved.Status = model.AlertStatusResolved
	missingName := &model.Alert{Status: model.AlertStatusFiring}

	msg := batch(t,
		firing("StackUnhealthy"),
		firing("UnknownAlert"),
		resolved,
		missingName,
		firing("NginxHighCPU"),
		firing("StackUnhealthy"),
	)

	n, err := d.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	var names []string
	for _, c := range runner.calls {
		names = append(names, c.alertName)
	}
	assert.Equal(t, []string{"StackUnhealthy", "NginxHighCPU", "StackUnhealthy"}, names)
}

func TestDispatcher_EmptyBatch(t *testing.T) {
	runner := &fakeRunner{ok: true}
	d, _ := newDispatcher(t, runner)

	n, err := d.Handle(context.Background(), &model.WebhookMessage{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, runner.calls)
}

func TestDispatcher_NullAlert(t *testing.T) {
	runner := &fakeRunner{ok: true}
	d, _ := newDispatcher(t, runner)

	msg := batch(t, firing("NginxDown"), nil, firing("ContainerDown"))

	_, err := d.Handle(context.Background(), msg)
	require.ErrorIs(t, err, ErrInvalidAlert)
	assert.Contains(t, err.Error(), "alerts[1]")

	require.Len(t, runner.calls, 1, "processing stops at the invalid entry")
	assert.Equal(t, "NginxDown", runner.calls[0].alertName)
}

func TestDispatcher_MalformedEntryStopsAtPosition(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{name: "number", entry: `1`},
		{name: "string", entry: `"NginxDown"`},
		{name: "status is not a string", entry: `{"status":5,"labels":{"alertname":"NginxDown"}}`},
		{name: "labels is a list", entry: `{"status":"firing","labels":["NginxDown"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{ok: true}
			d, _ := newDispatcher(t, runner)

			_, err := d.Handle(context.Background(), batch(t, firing("NginxDown"), tt.entry, firing("ContainerDown")))
			require.ErrorIs(t, err, ErrInvalidAlert)
			assert.Contains(t, err.Error(), "alerts[1]")

			require.Len(t, runner.calls, 1)
			assert.Equal(t, "NginxDown", runner.calls[0].alertName)
		})
	}
}

func TestDispatcher_IgnoresUnusedFields(t *testing.T) {
	runner := &fakeRunner{ok: true}
	d, _ := newDispatcher(t, runner)

	msg := batch(t,
		`{"status":"firing","labels":{"alertname":"NginxDown"},"startsAt":"","endsAt":"not a time"}`,
		`{"status":"firing","labels":{"alertname":"ContainerDown","replica":1,"instance":"web-1"},"annotations":{"value":0.93}}`,
	)

	n, err := d.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "NginxDown", runner.calls[0].alertName)
	assert.Equal(t, "ContainerDown", runner.calls[1].alertName)
	assert.Equal(t, "1", runner.calls[1].labels["replica"])
	assert.Equal(t, "web-1", runner.calls[1].labels[model.LabelInstance])
}

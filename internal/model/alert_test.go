package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlert_DecodeTolerantFields(t *testing.T) {
	var alert Alert
	err := json.Unmarshal([]byte(`{
		"status": "firing",
		"labels": {"alertname": "NginxDown", "replica": 1, "canary": true, "zone": null},
		"annotations": {"summary": "nginx is down", "runbook": {"url": "x"}},
		"startsAt": "",
		"endsAt": "0001-01-01T00:00:00Z"
	}`), &alert)
	require.NoError(t, err)

	assert.Equal(t, AlertStatusFiring, alert.Status)
	assert.Equal(t, "NginxDown", alert.Name())
	assert.Equal(t, Labels{"alertname": "NginxDown", "replica": "1", "canary": "true"}, alert.Labels)
	assert.Equal(t, `{"url": "x"}`, alert.Annotations["runbook"])
	assert.Empty(t, alert.StartsAt)
}

func TestAlert_Label(t *testing.T) {
	alert := &Alert{Labels: Labels{LabelInstance: "web-1:9113"}}

	assert.Equal(t, "web-1:9113", alert.Label(LabelInstance, "unknown"))
	assert.Equal(t, "unknown", alert.Label(LabelSeverity, "unknown"))
	assert.Equal(t, "", alert.Name())

	var empty Alert
	assert.Equal(t, "unknown", empty.Label(LabelInstance, "unknown"))
}

func TestAlert_DecodeRejectsNonObject(t *testing.T) {
	var alert Alert
	require.Error(t, json.Unmarshal([]byte(`1`), &alert))
	require.Error(t, json.Unmarshal([]byte(`{"labels": ["alertname"]}`), &alert))
}

package model

import (
	"bytes"
	"encoding/json"
)

// AlertStatus represents the state reported by Alertmanager for an alert
type AlertStatus string

const (
	AlertStatusFiring   AlertStatus = "firing"
	AlertStatusResolved AlertStatus = "resolved"
)

// Well-known alert label names
const (
	LabelAlertName = "alertname"
	LabelInstance  = "instance"
	LabelSeverity  = "severity"
)

// Labels is a label or annotation set. Non-string values are kept in their
// JSON text form and null values are dropped.
type Labels map[string]string

// UnmarshalJSON implements json.Unmarshaler
func (l *Labels) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	labels := make(Labels, len(raw))
	for name, value := range raw {
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			labels[name] = s
			continue
		}
		labels[name] = string(value)
	}
	*l = labels
	return nil
}

// Alert represents a single alert entry of a webhook notification.
// Timestamps are informational and kept as sent.
type Alert struct {
	Status       AlertStatus `json:"status"`
	Labels       Labels      `json:"labels"`
	Annotations  Labels      `json:"annotations,omitempty"`
	StartsAt     string      `json:"startsAt,omitempty"`
	EndsAt       string      `json:"endsAt,omitempty"`
	GeneratorURL string      `json:"generatorURL,omitempty"`
	Fingerprint  string      `json:"fingerprint,omitempty"`
}

// Name returns the alertname label, or an empty string when absent
func (a *Alert) Name() string {
	return a.Labels[LabelAlertName]
}

// Label returns the value of a label or fallback when it is absent
func (a *Alert) Label(name, fallback string) string {
	if v, ok := a.Labels[name]; ok {
		return v
	}
	return fallback
}

// WebhookMessage is the notification body sent by Alertmanager's webhook receiver.
// Alerts stay undecoded until dispatch so that a malformed entry only fails
// the batch at its own position.
type WebhookMessage struct {
	Version           string            `json:"version,omitempty"`
	GroupKey          string            `json:"groupKey,omitempty"`
	Status            string            `json:"status,omitempty"`
	Receiver          string            `json:"receiver,omitempty"`
	GroupLabels       Labels            `json:"groupLabels,omitempty"`
	CommonLabels      Labels            `json:"commonLabels,omitempty"`
	CommonAnnotations Labels            `json:"commonAnnotations,omitempty"`
	ExternalURL       string            `json:"externalURL,omitempty"`
	Alerts            []json.RawMessage `json:"alerts"`
}

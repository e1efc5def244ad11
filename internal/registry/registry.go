// Package registry holds the static table that maps alert names to the
// remediation playbook run when that alert fires.
package registry

import (
	"sort"

	"github.com/t77yq/self-healing/internal/config"
)

// Registry is an immutable alert name to playbook lookup table
type Registry struct {
	playbooks map[string]string
}

// New builds a registry from the configured remediations
func New(remediations []config.Remediation) *Registry {
	playbooks := make(map[string]string, len(remediations))
	for _, r := range remediations {
		playbooks[r.Alert] = r.Playbook
	}
	return &Registry{playbooks: playbooks}
}

// Lookup returns the playbook mapped to alertName
func (r *Registry) Lookup(alertName string) (string, bool) {
	playbook, ok := r.playbooks[alertName]
	return playbook, ok
}

// Len returns the number of mapped alerts
func (r *Registry) Len() int {
	return len(r.playbooks)
}

// Entries returns a copy of the table sorted by alert name
func (r *Registry) Entries() []config.Remediation {
	entries := make([]config.Remediation, 0, len(r.playbooks))
	for alert, playbook := range r.playbooks {
		entries = append(entries, config.Remediation{Alert: alert, Playbook: playbook})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Alert < entries[j].Alert
	})
	return entries
}

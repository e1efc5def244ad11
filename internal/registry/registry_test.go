package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t77yq/self-healing/internal/config"
)

func TestRegistry_Lookup(t *testing.T) {
	reg := New(config.DefaultRemediations())

	playbook, ok := reg.Lookup("NginxDown")
	require.True(t, ok)
	assert.Equal(t, "/app/ansible/heal-nginx.yml", playbook)

	playbook, ok = reg.Lookup("ContainerDown")
	require.True(t, ok)
	assert.Equal(t, "/app/ansible/restart-container.yml", playbook)

	_, ok = reg.Lookup("UnknownAlert")
	assert.False(t, ok)

	// Lookups are exact
	_, ok = reg.Lookup("nginxdown")
	assert.False(t, ok)
	_, ok = reg.Lookup("")
	assert.False(t, ok)
}

func TestRegistry_Entries(t *testing.T) {
	reg := New([]config.Remediation{
		{Alert: "StackUnhealthy", Playbook: "/b.yml"},
		{Alert: "ContainerDown", Playbook: "/a.yml"},
	})

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []config.Remediation{
		{Alert: "ContainerDown", Playbook: "/a.yml"},
		{Alert: "StackUnhealthy", Playbook: "/b.yml"},
	}, reg.Entries())

	// Mutating the copy leaves the registry untouched
	entries := reg.Entries()
	entries[0].Playbook = "/changed.yml"
	playbook, _ := reg.Lookup("ContainerDown")
	assert.Equal(t, "/a.yml", playbook)
}

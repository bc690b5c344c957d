package registry

import (
	"testing"

	"github.com/MarineRcher/notAlone-sub002/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSender struct{}

func (nopSender) Send([]byte) {}

func TestConnectionsIndexFollowsReconnect(t *testing.T) {
	r := NewConnections(testLogger())
	alice := types.UserIdentity{Id: "1001", Username: "alice"}

	r.Register("c1", alice, nopSender{})
	conn, ok := r.ByUser("1001")
	require.True(t, ok)
	assert.Equal(t, "c1", conn.Id)

	// reconnect: the index moves to the new connection
	r.Register("c2", alice, nopSender{})
	conn, ok = r.ByUser("1001")
	require.True(t, ok)
	assert.Equal(t, "c2", conn.Id)

	// deregistering the stale connection must not break the fresh index entry
	r.Deregister("c1")
	conn, ok = r.ByUser("1001")
	require.True(t, ok)
	assert.Equal(t, "c2", conn.Id)

	r.Deregister("c2")
	_, ok = r.ByUser("1001")
	assert.False(t, ok)
}

func TestConnectionsDeregisterIsIdempotent(t *testing.T) {
	r := NewConnections(testLogger())
	r.Register("c1", types.UserIdentity{Id: "1001", Username: "alice"}, nopSender{})

	r.Deregister("c1")
	r.Deregister("c1")

	_, ok := r.Get("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

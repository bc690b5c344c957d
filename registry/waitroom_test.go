package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/MarineRcher/notAlone-sub002/types"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() hclog.Logger {
	return hclog.NewNullLogger()
}

func TestWaitroomQuorumSnapshotAndClear(t *testing.T) {
	w := NewWaitroom(3, testLogger())

	state, recipients, rejoined, formation := w.Join("c1", types.UserIdentity{Id: "1001", Username: "alice"})
	require.False(t, rejoined)
	require.Nil(t, formation)
	assert.Equal(t, 1, state.CurrentCount)
	assert.Equal(t, 3, state.MinMembers)
	assert.Equal(t, []string{"c1"}, recipients)

	state, _, _, formation = w.Join("c2", types.UserIdentity{Id: "1002", Username: "bob"})
	require.Nil(t, formation)
	assert.Equal(t, 2, state.CurrentCount)

	state, recipients, rejoined, formation = w.Join("c3", types.UserIdentity{Id: "1003", Username: "charlie"})
	require.False(t, rejoined)
	require.NotNil(t, formation)
	assert.Equal(t, 3, state.CurrentCount)
	assert.Equal(t, []string{"c1", "c2", "c3"}, recipients)
	assert.NotEmpty(t, formation.GroupId)
	assert.NotEmpty(t, formation.GroupName)
	require.Len(t, formation.Members, 3)
	assert.Equal(t, "1001", formation.Members[0].UserId)
	assert.Equal(t, "1003", formation.Members[2].UserId)

	// the waitroom is empty immediately after formation
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 0, w.State().CurrentCount)
}

func TestWaitroomRejoinIsIdempotent(t *testing.T) {
	w := NewWaitroom(3, testLogger())

	w.Join("c1", types.UserIdentity{Id: "1001", Username: "alice"})
	state, recipients, rejoined, formation := w.Join("c9", types.UserIdentity{Id: "1001", Username: "alice"})

	require.True(t, rejoined)
	require.Nil(t, formation)
	assert.Equal(t, 1, state.CurrentCount)
	// the refreshed state goes to the rejoining connection only
	assert.Equal(t, []string{"c9"}, recipients)
	assert.Equal(t, 1, w.Len())
	// the entry now points at the new connection
	assert.Equal(t, "c9", w.State().WaitingUsers[0].ConnId)
}

func TestWaitroomLeaveRemovesOnlyCaller(t *testing.T) {
	w := NewWaitroom(5, testLogger())
	w.Join("c1", types.UserIdentity{Id: "1001", Username: "alice"})
	w.Join("c2", types.UserIdentity{Id: "1002", Username: "bob"})

	state, recipients, removed := w.Leave("1001")
	require.True(t, removed)
	assert.Equal(t, 1, state.CurrentCount)
	assert.Equal(t, "1002", state.WaitingUsers[0].UserId)
	assert.Equal(t, []string{"c2"}, recipients)

	_, _, removed = w.Leave("1001")
	assert.False(t, removed)
}

func TestWaitroomDisconnectIgnoresStaleConnection(t *testing.T) {
	w := NewWaitroom(5, testLogger())
	w.Join("c1", types.UserIdentity{Id: "1001", Username: "alice"})
	// user reconnected, entry now belongs to c2
	w.Join("c2", types.UserIdentity{Id: "1001", Username: "alice"})

	_, _, removed := w.Disconnect("1001", "c1")
	assert.False(t, removed)
	assert.Equal(t, 1, w.Len())

	_, _, removed = w.Disconnect("1001", "c2")
	assert.True(t, removed)
	assert.Equal(t, 0, w.Len())
}

func TestWaitroomConcurrentJoinsFormDisjointGroups(t *testing.T) {
	const users = 30
	w := NewWaitroom(3, testLogger())

	var mu sync.Mutex
	formations := make([]*Formation, 0)
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := types.UserIdentity{Id: fmt.Sprintf("u%02d", i), Username: fmt.Sprintf("user%02d", i)}
			_, _, _, formation := w.Join(fmt.Sprintf("c%02d", i), user)
			if formation != nil {
				mu.Lock()
				formations = append(formations, formation)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, formations, users/3)
	assert.Equal(t, 0, w.Len())
	seen := make(map[string]string)
	for _, f := range formations {
		require.Len(t, f.Members, 3)
		for _, m := range f.Members {
			prev, dup := seen[m.UserId]
			require.False(t, dup, "user %s in groups %s and %s", m.UserId, prev, f.GroupId)
			seen[m.UserId] = f.GroupId
		}
	}
	assert.Len(t, seen, users)
}

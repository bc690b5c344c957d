package ws_test

import (
	"encoding/json"
	"os"
	"sync"
	"testing"

	"github.com/MarineRcher/notAlone-sub002/config"
	"github.com/MarineRcher/notAlone-sub002/globals"
	"github.com/MarineRcher/notAlone-sub002/registry"
	"github.com/MarineRcher/notAlone-sub002/types"
	"github.com/MarineRcher/notAlone-sub002/ws"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	globals.AppLogger.SetLevel(hclog.Error)
	os.Exit(m.Run())
}

// fakeSender records every event envelope delivered to one connection.
type fakeSender struct {
	mu     sync.Mutex
	events []types.WebsocketMessage
}

func (f *fakeSender) Send(data []byte) {
	msg := types.WebsocketMessage{}
	if err := json.Unmarshal(data, &msg); err != nil {
		panic(err)
	}
	f.mu.Lock()
	f.events = append(f.events, msg)
	f.mu.Unlock()
}

func (f *fakeSender) countOf(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (f *fakeSender) lastOf(t *testing.T, event string, out interface{}) bool {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].Event == event {
			require.NoError(t, json.Unmarshal(f.events[i].Data, out))
			return true
		}
	}
	return false
}

func newTestHub() *ws.Hub {
	cfg := &config.Config{
		MinMembers:    3,
		HistoryConfig: config.HistoryConfig{MessageLimit: 20},
		StatsConfig:   config.StatsConfig{CronSpec: "@every 1m"},
	}
	return ws.NewHub(cfg, nil)
}

func connect(h *ws.Hub, connId, userId, username string) (*registry.Connection, *fakeSender) {
	sender := &fakeSender{}
	conn := h.HandleConnect(connId, types.UserIdentity{Id: userId, Username: username}, sender)
	return conn, sender
}

func dispatch(t *testing.T, h *ws.Hub, conn *registry.Connection, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	h.Dispatch(conn, types.WebsocketMessage{Event: event, Data: data})
}

func joinGroup(t *testing.T, h *ws.Hub, conn *registry.Connection, groupId string) {
	t.Helper()
	dispatch(t, h, conn, types.EventJoinGroup, map[string]string{"groupId": groupId})
}

func TestWaitroomFlowFormsGroup(t *testing.T) {
	h := newTestHub()
	a, sa := connect(h, "c1", "1001", "alice")
	b, sb := connect(h, "c2", "1002", "bob")
	c, sc := connect(h, "c3", "1003", "charlie")

	dispatch(t, h, a, types.EventJoinWaitroom, nil)
	dispatch(t, h, b, types.EventJoinWaitroom, nil)

	state := registry.WaitroomState{}
	require.True(t, sa.lastOf(t, types.EventWaitroomUpdated, &state))
	assert.Equal(t, 2, state.CurrentCount)
	require.True(t, sb.lastOf(t, types.EventWaitroomUpdated, &state))
	assert.Equal(t, 2, state.CurrentCount)

	dispatch(t, h, c, types.EventJoinWaitroom, nil)

	var groupId string
	for _, s := range []*fakeSender{sa, sb, sc} {
		created := struct {
			GroupId   string               `json:"groupId"`
			GroupName string               `json:"groupName"`
			Members   []types.UserIdentity `json:"members"`
		}{}
		require.True(t, s.lastOf(t, types.EventGroupCreated, &created))
		require.Len(t, created.Members, 3)
		assert.NotEmpty(t, created.GroupName)
		if groupId == "" {
			groupId = created.GroupId
		}
		assert.Equal(t, groupId, created.GroupId)
		assert.Equal(t, 1, s.countOf(types.EventGroupCreated))
	}

	assert.Equal(t, 0, h.Waitroom.Len())
	assert.Equal(t, 0, h.Stats().Waiting)

	// formation hands out the member list only, nobody is enrolled in the
	// live group until they join_group themselves
	_, ok := h.Groups.Members(groupId)
	assert.False(t, ok)

	joinGroup(t, h, a, groupId)
	members, ok := h.Groups.Members(groupId)
	require.True(t, ok)
	assert.Equal(t, []string{"c1"}, members)
}

func TestWaitroomRejoinDoesNotRebroadcast(t *testing.T) {
	h := newTestHub()
	a, sa := connect(h, "c1", "1001", "alice")
	b, sb := connect(h, "c2", "1002", "bob")

	dispatch(t, h, a, types.EventJoinWaitroom, nil)
	dispatch(t, h, b, types.EventJoinWaitroom, nil)
	updatesBefore := sb.countOf(types.EventWaitroomUpdated)

	dispatch(t, h, a, types.EventJoinWaitroom, nil)

	assert.Equal(t, 2, h.Waitroom.Len())
	assert.Equal(t, 2, h.Waitroom.State().CurrentCount)
	assert.Equal(t, updatesBefore, sb.countOf(types.EventWaitroomUpdated))
	assert.Equal(t, 2, sa.countOf(types.EventWaitroomJoined))
}

func TestWaitroomLeaveBroadcastsToRemaining(t *testing.T) {
	h := newTestHub()
	a, _ := connect(h, "c1", "1001", "alice")
	b, sb := connect(h, "c2", "1002", "bob")

	dispatch(t, h, a, types.EventJoinWaitroom, nil)
	dispatch(t, h, b, types.EventJoinWaitroom, nil)
	dispatch(t, h, a, types.EventLeaveWaitroom, nil)

	state := registry.WaitroomState{}
	require.True(t, sb.lastOf(t, types.EventWaitroomUpdated, &state))
	assert.Equal(t, 1, state.CurrentCount)
	assert.Equal(t, "1002", state.WaitingUsers[0].UserId)
}

func TestFormationSkipsUnresolvableMember(t *testing.T) {
	h := newTestHub()
	a, sa := connect(h, "c1", "1001", "alice")
	b, sb := connect(h, "c2", "1002", "bob")
	c, sc := connect(h, "c3", "1003", "charlie")

	dispatch(t, h, a, types.EventJoinWaitroom, nil)
	dispatch(t, h, b, types.EventJoinWaitroom, nil)
	// alice's connection vanishes without a clean disconnect
	h.Connections.Deregister("c1")

	dispatch(t, h, c, types.EventJoinWaitroom, nil)

	// formation still happened for the reachable members
	assert.Equal(t, 1, sb.countOf(types.EventGroupCreated))
	assert.Equal(t, 1, sc.countOf(types.EventGroupCreated))
	assert.Equal(t, 0, sa.countOf(types.EventGroupCreated))
	assert.Equal(t, 0, h.Waitroom.Len())
}

func TestGroupJoinNotifiesExistingMembersOnly(t *testing.T) {
	h := newTestHub()
	a, sa := connect(h, "c1", "1001", "alice")
	b, sb := connect(h, "c2", "1002", "bob")

	joinGroup(t, h, a, "g1")
	joinGroup(t, h, b, "g1")

	// the joiner gets the current member list excluding themselves
	members := struct {
		GroupId string               `json:"groupId"`
		Members []types.UserIdentity `json:"members"`
	}{}
	require.True(t, sb.lastOf(t, types.EventGroupMembers, &members))
	require.Len(t, members.Members, 1)
	assert.Equal(t, "1001", members.Members[0].Id)

	// pre-existing members get member_joined, the joiner does not
	joined := struct {
		GroupId  string `json:"groupId"`
		UserId   string `json:"userId"`
		Username string `json:"username"`
	}{}
	require.True(t, sa.lastOf(t, types.EventMemberJoined, &joined))
	assert.Equal(t, "1002", joined.UserId)
	assert.Equal(t, "bob", joined.Username)
	assert.Equal(t, 0, sb.countOf(types.EventMemberJoined))
}

func TestRelayDeliversToAllOthersUnchanged(t *testing.T) {
	h := newTestHub()
	a, sa := connect(h, "c1", "1001", "alice")
	b, sb := connect(h, "c2", "1002", "bob")
	c, sc := connect(h, "c3", "1003", "charlie")
	joinGroup(t, h, a, "g1")
	joinGroup(t, h, b, "g1")
	joinGroup(t, h, c, "g1")

	dispatch(t, h, a, types.EventGroupMessage, map[string]interface{}{
		"groupId": "g1",
		"encryptedMessage": map[string]interface{}{
			"encryptedPayload": "AAECAwQ=",
			"signature":        "c2lnbmF0dXJl",
			"keyVersion":       2,
			"timestamp":        1700000000000,
		},
	})

	for _, s := range []*fakeSender{sb, sc} {
		msg := types.EncryptedGroupMessage{}
		require.True(t, s.lastOf(t, types.EventGroupMessage, &msg))
		assert.Equal(t, "g1", msg.GroupId)
		assert.Equal(t, "1001", msg.SenderId)
		assert.Equal(t, "alice", msg.SenderName)
		assert.Equal(t, "AAECAwQ=", msg.EncryptedPayload)
		assert.Equal(t, "c2lnbmF0dXJl", msg.Signature)
		assert.Equal(t, 2, msg.KeyVersion)
		assert.Equal(t, int64(1700000000000), msg.Timestamp)
		assert.NotEmpty(t, msg.MessageId)
	}
	// the sender never receives its own message back
	assert.Equal(t, 0, sa.countOf(types.EventGroupMessage))
}

func TestRelayToUnknownGroupIsDropped(t *testing.T) {
	h := newTestHub()
	a, sa := connect(h, "c1", "1001", "alice")
	b, sb := connect(h, "c2", "1002", "bob")
	joinGroup(t, h, b, "g1")

	dispatch(t, h, a, types.EventGroupMessage, map[string]interface{}{
		"groupId": "ghost-group",
		"encryptedMessage": map[string]interface{}{
			"encryptedPayload": "AAECAwQ=",
		},
	})

	assert.Equal(t, 0, sa.countOf(types.EventGroupMessage))
	assert.Equal(t, 0, sb.countOf(types.EventGroupMessage))
}

func TestRelayNeverReachesNonMembers(t *testing.T) {
	h := newTestHub()
	a, _ := connect(h, "c1", "1001", "alice")
	b, sb := connect(h, "c2", "1002", "bob")
	outsider, so := connect(h, "c3", "1003", "charlie")
	joinGroup(t, h, a, "g1")
	joinGroup(t, h, b, "g1")
	joinGroup(t, h, outsider, "g2")

	dispatch(t, h, a, types.EventGroupMessage, map[string]interface{}{
		"groupId": "g1",
		"encryptedMessage": map[string]interface{}{
			"encryptedPayload": "payload",
		},
	})

	assert.Equal(t, 1, sb.countOf(types.EventGroupMessage))
	assert.Equal(t, 0, so.countOf(types.EventGroupMessage))
}

func TestDisconnectCleansUpEverything(t *testing.T) {
	h := newTestHub()
	a, _ := connect(h, "c1", "1001", "alice")
	b, sb := connect(h, "c2", "1002", "bob")
	joinGroup(t, h, a, "g1")
	joinGroup(t, h, a, "g2")
	joinGroup(t, h, b, "g1")
	joinGroup(t, h, b, "g2")

	h.HandleDisconnect("c1")

	// one member_left per shared group, exactly once each
	assert.Equal(t, 2, sb.countOf(types.EventMemberLeft))
	left := struct {
		GroupId string `json:"groupId"`
		UserId  string `json:"userId"`
	}{}
	require.True(t, sb.lastOf(t, types.EventMemberLeft, &left))
	assert.Equal(t, "1001", left.UserId)

	// the socket-user index entry is gone
	_, ok := h.Connections.ByUser("1001")
	assert.False(t, ok)
	assert.Empty(t, h.Groups.GroupsOf("c1"))

	// repeated cleanup is a no-op
	h.HandleDisconnect("c1")
	assert.Equal(t, 2, sb.countOf(types.EventMemberLeft))
}

func TestDisconnectDeletesEmptiedGroups(t *testing.T) {
	h := newTestHub()
	a, _ := connect(h, "c1", "1001", "alice")
	joinGroup(t, h, a, "g1")

	h.HandleDisconnect("c1")

	_, ok := h.Groups.Members("g1")
	assert.False(t, ok)
	assert.Equal(t, 0, h.Groups.Count())
}

func TestDisconnectRemovesWaitroomEntry(t *testing.T) {
	h := newTestHub()
	a, _ := connect(h, "c1", "1001", "alice")
	b, sb := connect(h, "c2", "1002", "bob")
	dispatch(t, h, a, types.EventJoinWaitroom, nil)
	dispatch(t, h, b, types.EventJoinWaitroom, nil)

	h.HandleDisconnect("c1")

	state := registry.WaitroomState{}
	require.True(t, sb.lastOf(t, types.EventWaitroomUpdated, &state))
	assert.Equal(t, 1, state.CurrentCount)
	assert.Equal(t, 1, h.Waitroom.Len())
}

func TestMalformedPayloadKeepsConnectionUsable(t *testing.T) {
	h := newTestHub()
	a, _ := connect(h, "c1", "1001", "alice")
	b, sb := connect(h, "c2", "1002", "bob")
	joinGroup(t, h, a, "g1")
	joinGroup(t, h, b, "g1")

	// garbage payload: dropped, logged, nothing delivered
	h.Dispatch(a, types.WebsocketMessage{Event: types.EventGroupMessage, Data: []byte(`"not an object"`)})
	assert.Equal(t, 0, sb.countOf(types.EventGroupMessage))

	// the same connection keeps working afterwards
	dispatch(t, h, a, types.EventGroupMessage, map[string]interface{}{
		"groupId": "g1",
		"encryptedMessage": map[string]interface{}{
			"encryptedPayload": "payload",
		},
	})
	assert.Equal(t, 1, sb.countOf(types.EventGroupMessage))
}

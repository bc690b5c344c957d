package ws

import (
	"time"

	"github.com/MarineRcher/notAlone-sub002/registry"
	"github.com/MarineRcher/notAlone-sub002/types"
)

func (h *Hub) handleJoinWaitroom(conn *registry.Connection) {
	if conn.User.Id == "" {
		h.send(conn.Sender, types.EventWaitroomError, errorPayload{Error: "not authenticated"})
		return
	}
	state, recipients, rejoined, formation := h.Waitroom.Join(conn.Id, conn.User)
	if rejoined {
		// reconnect while still waiting: resend the state to the caller only
		h.send(conn.Sender, types.EventWaitroomJoined, state)
		return
	}
	h.send(conn.Sender, types.EventWaitroomJoined, state)
	h.broadcast(recipients, types.EventWaitroomUpdated, state)
	if formation != nil {
		h.finishFormation(formation)
	}
}

func (h *Hub) handleLeaveWaitroom(conn *registry.Connection) {
	state, recipients, removed := h.Waitroom.Leave(conn.User.Id)
	if !removed {
		return
	}
	h.broadcast(recipients, types.EventWaitroomUpdated, state)
}

// finishFormation notifies every snapshotted member of the freshly minted
// group. A member whose connection is gone is skipped, formation never
// aborts; that member simply rejoins the waitroom on their next connect.
// Members are handed the member list only, they enroll in the live group
// themselves via join_group.
func (h *Hub) finishFormation(f *registry.Formation) {
	members := make([]types.UserIdentity, 0, len(f.Members))
	for _, m := range f.Members {
		members = append(members, types.UserIdentity{Id: m.UserId, Username: m.Username})
	}
	payload := groupCreatedPayload{GroupId: f.GroupId, GroupName: f.GroupName, Members: members}
	for _, m := range f.Members {
		if !h.sendToConn(m.ConnId, types.EventGroupCreated, payload) {
			h.logger.Warn("could not notify member of group creation",
				"groupId", f.GroupId, "userId", m.UserId)
		}
	}
	if h.Persister == nil {
		return
	}
	now := time.Now()
	group := types.Group{Id: f.GroupId, Name: f.GroupName, CreatedAt: now}
	rows := make([]types.GroupMember, 0, len(f.Members))
	for _, m := range f.Members {
		rows = append(rows, types.GroupMember{GroupId: f.GroupId, UserId: m.UserId, Username: m.Username, JoinedAt: now})
	}
	go func() {
		if err := h.Persister.CreateGroup(group); err != nil {
			h.logger.Error("could not persist group", "groupId", group.Id, "error", err)
		}
		for _, row := range rows {
			if err := h.Persister.AddMember(row); err != nil {
				h.logger.Error("could not persist group member", "groupId", row.GroupId, "userId", row.UserId, "error", err)
			}
		}
		if err := h.Persister.RecordGroupStats(h.Stats()); err != nil {
			h.logger.Error("could not record group stats", "error", err)
		}
	}()
}

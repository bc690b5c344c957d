package ws

import (
	"time"

	"github.com/MarineRcher/notAlone-sub002/registry"
	"github.com/MarineRcher/notAlone-sub002/types"
)

func (h *Hub) handleJoinGroup(conn *registry.Connection, data []byte) {
	payload := joinGroupPayload{}
	if err := decodePayload(data, &payload); err != nil || payload.GroupId == "" {
		h.logger.Warn("invalid join_group payload dropped", "connId", conn.Id, "error", err)
		return
	}
	existing := h.Groups.Join(payload.GroupId, conn.Id)
	members := make([]types.UserIdentity, 0, len(existing))
	for _, id := range existing {
		if c, ok := h.Connections.Get(id); ok {
			members = append(members, c.User)
		}
	}
	h.send(conn.Sender, types.EventGroupMembers, groupMembersPayload{GroupId: payload.GroupId, Members: members})
	h.broadcast(existing, types.EventMemberJoined, memberPayload{
		GroupId:  payload.GroupId,
		UserId:   conn.User.Id,
		Username: conn.User.Username,
	})
	if h.Persister != nil {
		row := types.GroupMember{GroupId: payload.GroupId, UserId: conn.User.Id, Username: conn.User.Username, JoinedAt: time.Now()}
		go func() {
			if err := h.Persister.AddMember(row); err != nil {
				h.logger.Error("could not persist group member", "groupId", row.GroupId, "userId", row.UserId, "error", err)
			}
		}()
		go h.sendGroupHistory(conn, payload.GroupId)
	}
}

func (h *Hub) handleLeaveGroup(conn *registry.Connection, data []byte) {
	payload := joinGroupPayload{}
	if err := decodePayload(data, &payload); err != nil || payload.GroupId == "" {
		h.logger.Warn("invalid leave_group payload dropped", "connId", conn.Id, "error", err)
		return
	}
	remaining, removed := h.Groups.Leave(payload.GroupId, conn.Id)
	if !removed {
		return
	}
	h.broadcast(remaining, types.EventMemberLeft, memberPayload{
		GroupId:  payload.GroupId,
		UserId:   conn.User.Id,
		Username: conn.User.Username,
	})
}

// sendGroupHistory replays recently stored messages to a joiner. Best-effort:
// a persistence failure only logs, the join has already completed.
func (h *Hub) sendGroupHistory(conn *registry.Connection, groupId string) {
	messages, err := h.Persister.LoadMessages(groupId, h.Cfg.HistoryConfig.MessageLimit)
	if err != nil {
		h.logger.Error("could not load message history", "groupId", groupId, "error", err)
		return
	}
	if len(messages) == 0 {
		return
	}
	h.send(conn.Sender, types.EventGroupHistory, groupHistoryPayload{GroupId: groupId, Messages: messages})
}

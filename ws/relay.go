package ws

import (
	"time"

	"github.com/MarineRcher/notAlone-sub002/registry"
	"github.com/MarineRcher/notAlone-sub002/types"
)

// handleGroupMessage fans an opaque encrypted message out to every other
// member of the group. Delivery is one attempt per member, independent: an
// unresolvable member is skipped and never aborts the rest. The sender gets
// no acknowledgement and never receives its own message back.
func (h *Hub) handleGroupMessage(conn *registry.Connection, data []byte) {
	payload := groupMessagePayload{}
	if err := decodePayload(data, &payload); err != nil {
		h.logger.Warn("invalid group_message payload dropped", "connId", conn.Id, "error", err)
		return
	}
	if payload.GroupId == "" || payload.EncryptedMessage.EncryptedPayload == "" {
		h.logger.Warn("incomplete group_message dropped", "connId", conn.Id, "groupId", payload.GroupId)
		return
	}
	members, ok := h.Groups.Members(payload.GroupId)
	if !ok {
		h.logger.Warn("group_message for unknown group dropped", "connId", conn.Id, "groupId", payload.GroupId)
		return
	}
	msg := payload.EncryptedMessage
	msg.GroupId = payload.GroupId
	msg.SenderId = conn.User.Id
	msg.SenderName = conn.User.Username
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	if err := msg.CreateId(); err != nil {
		h.logger.Error("could not hash group message", "error", err)
		return
	}
	for _, id := range members {
		if id == conn.Id {
			continue
		}
		if !h.sendToConn(id, types.EventGroupMessage, msg) {
			h.logger.Debug("skipping unresolvable group member", "connId", id, "groupId", msg.GroupId)
		}
	}
	if h.Persister != nil {
		row := types.StoredMessage{
			Id:       msg.MessageId,
			GroupId:  msg.GroupId,
			SenderId: msg.SenderId,
			Payload:  msg.EncryptedPayload,
			Type:     types.EventGroupMessage,
			Created:  time.Now(),
		}
		go func() {
			if err := h.Persister.StoreMessage(row); err != nil {
				h.logger.Error("could not persist message", "messageId", row.Id, "error", err)
			}
		}()
	}
}

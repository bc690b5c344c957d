package ws

import (
	"github.com/MarineRcher/notAlone-sub002/registry"
	"github.com/MarineRcher/notAlone-sub002/types"
)

// Key-distribution signaling. The router holds no session state of its own,
// it only resolves destinations through the live connection topology. All
// payloads (bundles, device info, initial messages) pass through opaque.
//
// Unresolvable destinations fail silently (log only) for the sender-key
// flows, but return an explicit error event to the caller for device-info
// and initial-message exchanges.

func (h *Hub) handleShareSenderKey(conn *registry.Connection, data []byte) {
	payload := shareSenderKeyPayload{}
	if err := decodePayload(data, &payload); err != nil || payload.GroupId == "" || payload.TargetUserId == "" {
		h.logger.Warn("invalid share_sender_key payload dropped", "connId", conn.Id, "error", err)
		return
	}
	target, ok := h.Connections.ByUser(payload.TargetUserId)
	if !ok {
		h.logger.Warn("sender key target not online", "targetUserId", payload.TargetUserId, "groupId", payload.GroupId)
		return
	}
	h.send(target.Sender, types.EventSenderKeyBundle, senderKeyBundlePayload{
		GroupId:    payload.GroupId,
		FromUserId: conn.User.Id,
		Bundle:     payload.Bundle,
	})
}

func (h *Hub) handleRequestSenderKeys(conn *registry.Connection, data []byte) {
	payload := requestSenderKeysPayload{}
	if err := decodePayload(data, &payload); err != nil || payload.GroupId == "" {
		h.logger.Warn("invalid request_sender_keys payload dropped", "connId", conn.Id, "error", err)
		return
	}
	members, ok := h.Groups.Members(payload.GroupId)
	if !ok {
		h.logger.Warn("sender key request for unknown group dropped", "connId", conn.Id, "groupId", payload.GroupId)
		return
	}
	request := senderKeyRequestPayload{GroupId: payload.GroupId, FromUserId: conn.User.Id}
	for _, id := range members {
		if id == conn.Id {
			continue
		}
		h.sendToConn(id, types.EventSenderKeyRequest, request)
	}
}

func (h *Hub) handleRequestSenderKey(conn *registry.Connection, data []byte) {
	payload := requestSenderKeyPayload{}
	if err := decodePayload(data, &payload); err != nil || payload.GroupId == "" || payload.FromUserId == "" {
		h.logger.Warn("invalid request_sender_key payload dropped", "connId", conn.Id, "error", err)
		return
	}
	target, ok := h.Connections.ByUser(payload.FromUserId)
	if !ok {
		h.logger.Warn("sender key owner not online", "userId", payload.FromUserId, "groupId", payload.GroupId)
		return
	}
	h.send(target.Sender, types.EventRequestSenderKey, senderKeyRequestPayload{
		GroupId:    payload.GroupId,
		FromUserId: conn.User.Id,
	})
}

func (h *Hub) handleDeviceInfoExchange(conn *registry.Connection, data []byte) {
	payload := deviceInfoExchangePayload{}
	if err := decodePayload(data, &payload); err != nil || payload.TargetUserId == "" {
		h.logger.Warn("invalid device_info_exchange payload dropped", "connId", conn.Id, "error", err)
		return
	}
	target, ok := h.Connections.ByUser(payload.TargetUserId)
	if !ok {
		h.send(conn.Sender, types.EventDeviceInfoError, errorPayload{
			TargetUserId: payload.TargetUserId,
			Error:        "User not online",
		})
		return
	}
	h.send(target.Sender, types.EventDeviceInfoReceived, deviceInfoReceivedPayload{
		FromUserId: conn.User.Id,
		DeviceInfo: payload.DeviceInfo,
	})
}

func (h *Hub) handleInitialMessage(conn *registry.Connection, data []byte) {
	payload := initialMessagePayload{}
	if err := decodePayload(data, &payload); err != nil || payload.TargetUserId == "" {
		h.logger.Warn("invalid initial_message payload dropped", "connId", conn.Id, "error", err)
		return
	}
	target, ok := h.Connections.ByUser(payload.TargetUserId)
	if !ok {
		h.send(conn.Sender, types.EventInitialMessageError, errorPayload{
			TargetUserId: payload.TargetUserId,
			Error:        "User not online",
		})
		return
	}
	h.send(target.Sender, types.EventInitialMessageReceived, initialMessageReceivedPayload{
		FromUserId:        conn.User.Id,
		InitialMessage:    payload.InitialMessage,
		RemoteIdentityKey: payload.RemoteIdentityKey,
	})
}

func (h *Hub) handleKeyRotation(conn *registry.Connection, data []byte) {
	payload := keyRotationPayload{}
	if err := decodePayload(data, &payload); err != nil || payload.GroupId == "" {
		h.logger.Warn("invalid key_rotation payload dropped", "connId", conn.Id, "error", err)
		return
	}
	members, ok := h.Groups.Members(payload.GroupId)
	if !ok {
		h.logger.Warn("key rotation for unknown group dropped", "connId", conn.Id, "groupId", payload.GroupId)
		return
	}
	notice := keyRotationNoticePayload{
		GroupId:    payload.GroupId,
		FromUserId: conn.User.Id,
		NewBundle:  payload.NewBundle,
	}
	for _, id := range members {
		if id == conn.Id {
			continue
		}
		h.sendToConn(id, types.EventKeyRotation, notice)
	}
}

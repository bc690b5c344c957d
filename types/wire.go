package types

import "encoding/json"

// Inbound event names. These are the wire contract with the clients.
const (
	EventJoinWaitroom       = "join_waitroom"
	EventLeaveWaitroom      = "leave_waitroom"
	EventJoinGroup          = "join_group"
	EventLeaveGroup         = "leave_group"
	EventGroupMessage       = "group_message"
	EventShareSenderKey     = "share_sender_key"
	EventRequestSenderKeys  = "request_sender_keys"
	EventRequestSenderKey   = "request_sender_key"
	EventDeviceInfoExchange = "device_info_exchange"
	EventInitialMessage     = "initial_message"
	EventKeyRotation        = "key_rotation"
)

// Outbound event names.
const (
	EventWaitroomJoined         = "waitroom_joined"
	EventWaitroomUpdated        = "waitroom_updated"
	EventGroupCreated           = "group_created"
	EventWaitroomError          = "waitroom_error"
	EventMemberJoined           = "member_joined"
	EventMemberLeft             = "member_left"
	EventGroupMembers           = "group_members"
	EventGroupHistory           = "group_history"
	EventSenderKeyBundle        = "sender_key_bundle"
	EventSenderKeyRequest       = "sender_key_request"
	EventDeviceInfoReceived     = "device_info_received"
	EventDeviceInfoError        = "device_info_error"
	EventInitialMessageReceived = "initial_message_received"
	EventInitialMessageError    = "initial_message_error"
)

// JSON-serialized WebsocketMessage is what is actually sent via the Websocket connection
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

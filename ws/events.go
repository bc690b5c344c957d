package ws

import (
	"encoding/json"

	"github.com/MarineRcher/notAlone-sub002/types"
	"github.com/mitchellh/mapstructure"
)

// decodePayload weak-decodes an inbound event payload into a handler struct.
// Unknown fields are ignored, missing ones stay zero; the handlers validate
// what they need.
func decodePayload(data json.RawMessage, out interface{}) error {
	m := make(map[string]interface{})
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	return mapstructure.WeakDecode(m, out)
}

// Inbound payloads.

type joinGroupPayload struct {
	GroupId string `mapstructure:"groupId"`
}

type groupMessagePayload struct {
	GroupId          string                      `mapstructure:"groupId"`
	EncryptedMessage types.EncryptedGroupMessage `mapstructure:"encryptedMessage"`
}

type shareSenderKeyPayload struct {
	GroupId      string                `mapstructure:"groupId"`
	TargetUserId string                `mapstructure:"targetUserId"`
	Bundle       types.SenderKeyBundle `mapstructure:"bundle"`
}

type requestSenderKeysPayload struct {
	GroupId string `mapstructure:"groupId"`
}

type requestSenderKeyPayload struct {
	GroupId    string `mapstructure:"groupId"`
	FromUserId string `mapstructure:"fromUserId"`
}

type deviceInfoExchangePayload struct {
	TargetUserId string      `mapstructure:"targetUserId"`
	DeviceInfo   interface{} `mapstructure:"deviceInfo"`
}

type initialMessagePayload struct {
	TargetUserId      string      `mapstructure:"targetUserId"`
	InitialMessage    interface{} `mapstructure:"initialMessage"`
	RemoteIdentityKey interface{} `mapstructure:"remoteIdentityKey"`
}

type keyRotationPayload struct {
	GroupId   string                `mapstructure:"groupId"`
	NewBundle types.SenderKeyBundle `mapstructure:"newBundle"`
}

// Outbound payloads.

type errorPayload struct {
	TargetUserId string `json:"targetUserId,omitempty"`
	Error        string `json:"error"`
}

type memberPayload struct {
	GroupId  string `json:"groupId"`
	UserId   string `json:"userId"`
	Username string `json:"username"`
}

type groupMembersPayload struct {
	GroupId string               `json:"groupId"`
	Members []types.UserIdentity `json:"members"`
}

type groupCreatedPayload struct {
	GroupId   string               `json:"groupId"`
	GroupName string               `json:"groupName"`
	Members   []types.UserIdentity `json:"members"`
}

type groupHistoryPayload struct {
	GroupId  string                `json:"groupId"`
	Messages []types.StoredMessage `json:"messages"`
}

type senderKeyBundlePayload struct {
	GroupId    string                `json:"groupId"`
	FromUserId string                `json:"fromUserId"`
	Bundle     types.SenderKeyBundle `json:"bundle"`
}

type senderKeyRequestPayload struct {
	GroupId    string `json:"groupId"`
	FromUserId string `json:"fromUserId"`
}

type deviceInfoReceivedPayload struct {
	FromUserId string      `json:"fromUserId"`
	DeviceInfo interface{} `json:"deviceInfo"`
}

type initialMessageReceivedPayload struct {
	FromUserId        string      `json:"fromUserId"`
	InitialMessage    interface{} `json:"initialMessage"`
	RemoteIdentityKey interface{} `json:"remoteIdentityKey"`
}

type keyRotationNoticePayload struct {
	GroupId    string                `json:"groupId"`
	FromUserId string                `json:"fromUserId"`
	NewBundle  types.SenderKeyBundle `json:"newBundle"`
}

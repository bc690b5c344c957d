package types

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// EncryptedGroupMessage is an end-to-end encrypted group message. The payload
// and signature are opaque blobs produced by the clients, the relay only
// injects the sender metadata and forwards.
type EncryptedGroupMessage struct {
	GroupId          string `json:"groupId" mapstructure:"groupId"`
	SenderId         string `json:"senderId" mapstructure:"-"`
	SenderName       string `json:"senderName" mapstructure:"-" hash:"ignore"`
	MessageId        string `json:"messageId" mapstructure:"messageId" hash:"ignore"`
	Timestamp        int64  `json:"timestamp" mapstructure:"timestamp"`
	EncryptedPayload string `json:"encryptedPayload" mapstructure:"encryptedPayload"`
	Signature        string `json:"signature" mapstructure:"signature"`
	KeyVersion       int    `json:"keyVersion" mapstructure:"keyVersion"`
}

// CreateId fills in a deterministic message id if the client did not supply one.
func (m *EncryptedGroupMessage) CreateId() error {
	if m.MessageId != "" {
		return nil
	}
	h, err := hashstructure.Hash(m, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	m.MessageId = fmt.Sprintf("%016x", h)
	return nil
}

// SenderKeyBundle carries one member's sender-key material for a group.
// The keys are opaque to the relay, it only routes the bundle.
type SenderKeyBundle struct {
	UserId     string `json:"userId" mapstructure:"userId"`
	SigningKey string `json:"signingKey" mapstructure:"signingKey"`
	ChainKey   string `json:"chainKey" mapstructure:"chainKey"`
	Counter    int    `json:"counter" mapstructure:"counter"`
}

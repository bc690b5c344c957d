package types

import "time"

// Group is the persisted record of a formed group. Live membership is tracked
// in memory only, this row exists for the history and stats surfaces.
type Group struct {
	Id        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type GroupMember struct {
	GroupId  string    `json:"groupId" gorm:"primaryKey"`
	UserId   string    `json:"userId" gorm:"primaryKey"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// StoredMessage is the persisted form of a relayed message. The payload stays
// ciphertext, it is never decrypted server-side.
type StoredMessage struct {
	Id       string    `json:"id" gorm:"primaryKey"`
	GroupId  string    `json:"groupId" gorm:"index"`
	SenderId string    `json:"senderId"`
	Payload  string    `json:"payload"`
	Type     string    `json:"type"`
	Created  time.Time `json:"created" gorm:"index"`
}

// GroupStats is a point-in-time snapshot of the live topology.
type GroupStats struct {
	Id          uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	Waiting     int       `json:"waiting"`
	Groups      int       `json:"groups"`
	Connections int       `json:"connections"`
	Created     time.Time `json:"created"`
}

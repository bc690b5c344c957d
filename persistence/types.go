package persistence

import (
	"fmt"

	"github.com/MarineRcher/notAlone-sub002/config"
	"github.com/MarineRcher/notAlone-sub002/types"
)

// Persister is the persistence collaborator. All calls are fire-and-forget
// from the relay's perspective: a failure here is logged by the caller and
// never rolls back or delays an in-memory state change.
type Persister interface {
	CreateGroup(group types.Group) error
	AddMember(member types.GroupMember) error
	StoreMessage(msg types.StoredMessage) error
	LoadMessages(groupId string, limit int) ([]types.StoredMessage, error)
	RecordGroupStats(stats types.GroupStats) error
	GetGroups() ([]types.Group, error)
	Close() error
}

// NewPersister picks the backend from the configuration. An empty type
// disables persistence (nil, nil).
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "":
		return nil, nil
	case "buntdb":
		return NewBuntPersister(cfg)
	case "sqlite", "postgres":
		return NewGormPersister(cfg)
	}
	return nil, fmt.Errorf("unknown persistence type %q", cfg.PersistenceConfig.Type)
}

package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/MarineRcher/notAlone-sub002/config"
	"github.com/MarineRcher/notAlone-sub002/types"
	"github.com/tidwall/buntdb"
)

type BuntDBPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	db, err := setupBuntDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	return &BuntDBPersist{db}, nil
}

func setupBuntDB(cfg *config.Config) (*buntdb.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("messagests", "message:*", buntdb.IndexJSON("created"))
	if err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (p *BuntDBPersist) CreateGroup(group types.Group) error {
	g, err := json.Marshal(group)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("group:"+group.Id, string(g), nil)
		return err
	})
}

func (p *BuntDBPersist) AddMember(member types.GroupMember) error {
	m, err := json.Marshal(member)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("member:"+member.GroupId+":"+member.UserId, string(m), nil)
		return err
	})
}

func (p *BuntDBPersist) StoreMessage(msg types.StoredMessage) error {
	if msg.Id == "" {
		return fmt.Errorf("no message id")
	}
	m, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("message:"+msg.Id, string(m), nil)
		return err
	})
}

// LoadMessages returns up to limit messages for the group, newest first.
func (p *BuntDBPersist) LoadMessages(groupId string, limit int) ([]types.StoredMessage, error) {
	messages := make([]types.StoredMessage, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.Descend("messagests", func(key, val string) bool {
			msg := types.StoredMessage{}
			if err := json.Unmarshal([]byte(val), &msg); err != nil {
				return true
			}
			if msg.GroupId != groupId {
				return true
			}
			messages = append(messages, msg)
			return limit <= 0 || len(messages) < limit
		})
	})
	return messages, err
}

func (p *BuntDBPersist) RecordGroupStats(stats types.GroupStats) error {
	s, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(fmt.Sprintf("stats:%d", stats.Created.UnixNano()), string(s), nil)
		return err
	})
}

func (p *BuntDBPersist) GetGroups() ([]types.Group, error) {
	groups := make([]types.Group, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("group:*", func(key, val string) bool {
			group := types.Group{}
			if err := json.Unmarshal([]byte(val), &group); err == nil {
				groups = append(groups, group)
			}
			return true
		})
	})
	return groups, err
}

func (p *BuntDBPersist) Close() error {
	return p.db.Close()
}

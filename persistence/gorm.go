package persistence

import (
	"fmt"

	"github.com/MarineRcher/notAlone-sub002/config"
	"github.com/MarineRcher/notAlone-sub002/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	return &GormPersist{db: db}, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	err = db.Migrator().AutoMigrate(&types.Group{}, &types.GroupMember{}, &types.StoredMessage{}, &types.GroupStats{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (p *GormPersist) CreateGroup(group types.Group) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&group).Error
}

func (p *GormPersist) AddMember(member types.GroupMember) error {
	return p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
}

func (p *GormPersist) StoreMessage(msg types.StoredMessage) error {
	return p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&msg).Error
}

func (p *GormPersist) LoadMessages(groupId string, limit int) ([]types.StoredMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	messages := make([]types.StoredMessage, 0)
	err := p.db.Where("group_id = ?", groupId).Order("created DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (p *GormPersist) RecordGroupStats(stats types.GroupStats) error {
	return p.db.Create(&stats).Error
}

func (p *GormPersist) GetGroups() ([]types.Group, error) {
	groups := make([]types.Group, 0)
	err := p.db.Find(&groups).Error
	return groups, err
}

func (p *GormPersist) Close() error {
	return nil
}

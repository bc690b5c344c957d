package registry

import (
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Groups tracks live group membership as sets of connection ids. Groups are
// created on first join and deleted when the last member leaves; there is no
// persistence at this layer, it is purely presence tracking.
type Groups struct {
	mu     sync.RWMutex
	groups map[string]map[string]struct{}
	logger hclog.Logger
}

func NewGroups(logger hclog.Logger) *Groups {
	return &Groups{
		groups: make(map[string]map[string]struct{}),
		logger: logger.Named("groups"),
	}
}

// Join adds the connection to the group, creating the group if needed, and
// returns the connection ids that were members before the join.
func (g *Groups) Join(groupId, connId string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.groups[groupId]
	if !ok {
		members = make(map[string]struct{})
		g.groups[groupId] = members
		g.logger.Debug("group created", "groupId", groupId)
	}
	existing := make([]string, 0, len(members))
	for id := range members {
		if id != connId {
			existing = append(existing, id)
		}
	}
	members[connId] = struct{}{}
	return existing
}

// Leave removes the connection from the group and returns the remaining
// member ids. The group is deleted once empty. Leaving a group one is not a
// member of, or an unknown group, is a no-op.
func (g *Groups) Leave(groupId, connId string) (remaining []string, removed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.groups[groupId]
	if !ok {
		return nil, false
	}
	if _, ok := members[connId]; !ok {
		return nil, false
	}
	delete(members, connId)
	if len(members) == 0 {
		delete(g.groups, groupId)
		g.logger.Debug("removed empty group", "groupId", groupId)
		return nil, true
	}
	remaining = make([]string, 0, len(members))
	for id := range members {
		remaining = append(remaining, id)
	}
	return remaining, true
}

// Members returns a snapshot of the group's member connection ids.
func (g *Groups) Members(groupId string) ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members, ok := g.groups[groupId]
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids, true
}

// GroupsOf returns every group the connection is currently a member of.
func (g *Groups) GroupsOf(connId string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0)
	for groupId, members := range g.groups {
		if _, ok := members[connId]; ok {
			ids = append(ids, groupId)
		}
	}
	return ids
}

func (g *Groups) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.groups)
}

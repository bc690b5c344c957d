package ws

import (
	"encoding/json"
	"time"

	"github.com/MarineRcher/notAlone-sub002/config"
	"github.com/MarineRcher/notAlone-sub002/globals"
	"github.com/MarineRcher/notAlone-sub002/persistence"
	"github.com/MarineRcher/notAlone-sub002/registry"
	"github.com/MarineRcher/notAlone-sub002/types"
	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
)

// Hub is the connection lifecycle coordinator: it owns the registries, routes
// every inbound event to its handler and guarantees cleanup on disconnect.
type Hub struct {
	Cfg       *config.Config
	Persister persistence.Persister

	Connections *registry.Connections
	Groups      *registry.Groups
	Waitroom    *registry.Waitroom

	logger hclog.Logger
}

func NewHub(cfg *config.Config, persister persistence.Persister) *Hub {
	logger := globals.AppLogger
	return &Hub{
		Cfg:         cfg,
		Persister:   persister,
		Connections: registry.NewConnections(logger),
		Groups:      registry.NewGroups(logger),
		Waitroom:    registry.NewWaitroom(cfg.MinMembers, logger),
		logger:      logger,
	}
}

// Run starts the periodic stats snapshot and blocks until stop is closed.
// All event handling happens on the per-connection read loops, there is no
// central dispatch goroutine.
func (h *Hub) Run(stop <-chan struct{}) {
	cronRunner := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if h.Persister != nil {
		_, err := cronRunner.AddFunc(h.Cfg.StatsConfig.CronSpec, func() {
			if err := h.Persister.RecordGroupStats(h.Stats()); err != nil {
				h.logger.Error("could not record group stats", "error", err)
			}
		})
		if err != nil {
			h.logger.Error("could not schedule stats job", "error", err)
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()
	<-stop
}

// Stats returns a point-in-time snapshot of the live topology.
func (h *Hub) Stats() types.GroupStats {
	return types.GroupStats{
		Waiting:     h.Waitroom.Len(),
		Groups:      h.Groups.Count(),
		Connections: h.Connections.Count(),
		Created:     time.Now(),
	}
}

// HandleConnect registers an authenticated connection. Authentication itself
// happens before this point; an unauthenticated connection never reaches the
// hub.
func (h *Hub) HandleConnect(connId string, user types.UserIdentity, sender registry.Sender) *registry.Connection {
	h.logger.Info("connection established", "connId", connId, "userId", user.Id, "username", user.Username)
	return h.Connections.Register(connId, user, sender)
}

// HandleDisconnect removes the connection from every component that tracked
// it: the waitroom (with a state broadcast to the remaining waiters), every
// group it was a member of (with a member_left notification each), and the
// connection registry. It is idempotent, repeated calls are no-ops.
func (h *Hub) HandleDisconnect(connId string) {
	conn, ok := h.Connections.Get(connId)
	if !ok {
		return
	}
	state, recipients, removed := h.Waitroom.Disconnect(conn.User.Id, connId)
	if removed {
		h.broadcast(recipients, types.EventWaitroomUpdated, state)
	}
	for _, groupId := range h.Groups.GroupsOf(connId) {
		remaining, left := h.Groups.Leave(groupId, connId)
		if left {
			h.broadcast(remaining, types.EventMemberLeft, memberPayload{
				GroupId:  groupId,
				UserId:   conn.User.Id,
				Username: conn.User.Username,
			})
		}
	}
	h.Connections.Deregister(connId)
	h.logger.Info("connection cleaned up", "connId", connId, "userId", conn.User.Id)
}

// Dispatch routes one inbound event to its handler. Events from one
// connection arrive here strictly in transport order.
func (h *Hub) Dispatch(conn *registry.Connection, msg types.WebsocketMessage) {
	switch msg.Event {
	case types.EventJoinWaitroom:
		h.handleJoinWaitroom(conn)
	case types.EventLeaveWaitroom:
		h.handleLeaveWaitroom(conn)
	case types.EventJoinGroup:
		h.handleJoinGroup(conn, msg.Data)
	case types.EventLeaveGroup:
		h.handleLeaveGroup(conn, msg.Data)
	case types.EventGroupMessage:
		h.handleGroupMessage(conn, msg.Data)
	case types.EventShareSenderKey:
		h.handleShareSenderKey(conn, msg.Data)
	case types.EventRequestSenderKeys:
		h.handleRequestSenderKeys(conn, msg.Data)
	case types.EventRequestSenderKey:
		h.handleRequestSenderKey(conn, msg.Data)
	case types.EventDeviceInfoExchange:
		h.handleDeviceInfoExchange(conn, msg.Data)
	case types.EventInitialMessage:
		h.handleInitialMessage(conn, msg.Data)
	case types.EventKeyRotation:
		h.handleKeyRotation(conn, msg.Data)
	default:
		h.logger.Warn("unknown event dropped", "event", msg.Event, "connId", conn.Id)
	}
}

// send marshals an event envelope and queues it on the sender. Errors are
// logged and swallowed: outbound delivery is fire-and-forget.
func (h *Hub) send(s registry.Sender, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("could not marshal event payload", "event", event, "error", err)
		return
	}
	raw, err := json.Marshal(types.WebsocketMessage{Event: event, Data: data})
	if err != nil {
		h.logger.Error("could not marshal event envelope", "event", event, "error", err)
		return
	}
	s.Send(raw)
}

// sendToConn resolves a connection id and sends. Returns false if the
// connection is no longer resolvable (stale entry).
func (h *Hub) sendToConn(connId string, event string, payload interface{}) bool {
	conn, ok := h.Connections.Get(connId)
	if !ok {
		return false
	}
	h.send(conn.Sender, event, payload)
	return true
}

func (h *Hub) broadcast(connIds []string, event string, payload interface{}) {
	for _, id := range connIds {
		if !h.sendToConn(id, event, payload) {
			h.logger.Debug("skipping unresolvable connection", "connId", id, "event", event)
		}
	}
}

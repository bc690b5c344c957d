package registry

import (
	"sync"

	"github.com/MarineRcher/notAlone-sub002/types"
	"github.com/hashicorp/go-hclog"
)

// Sender is the outbound half of a connection as seen by the registries.
// *ws.Client implements it, tests substitute a recording fake.
type Sender interface {
	Send(data []byte)
}

// Connection is the registry's non-owning view of one live connection:
// the transport handle stays with the ws layer, the registry only keeps
// what it needs to resolve and address the connection.
type Connection struct {
	Id     string
	User   types.UserIdentity
	Sender Sender
}

// Connections maps connection ids to live connections and keeps the
// bidirectional socket<->user index in lockstep. A user has at most one
// indexed connection, a re-register for the same user replaces the index
// entry (reconnect).
type Connections struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	byUser map[string]string
	logger hclog.Logger
}

func NewConnections(logger hclog.Logger) *Connections {
	return &Connections{
		conns:  make(map[string]*Connection),
		byUser: make(map[string]string),
		logger: logger.Named("connections"),
	}
}

func (r *Connections) Register(connId string, user types.UserIdentity, sender Sender) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn := &Connection{Id: connId, User: user, Sender: sender}
	r.conns[connId] = conn
	r.byUser[user.Id] = connId
	r.logger.Debug("connection registered", "connId", connId, "userId", user.Id)
	return conn
}

// Deregister removes the connection and its index entry. Repeated calls for
// the same id are no-ops. The index entry is only removed if it still points
// at this connection, so a reconnect that already replaced it is untouched.
func (r *Connections) Deregister(connId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[connId]
	if !ok {
		return
	}
	delete(r.conns, connId)
	if cur, ok := r.byUser[conn.User.Id]; ok && cur == connId {
		delete(r.byUser, conn.User.Id)
	}
	r.logger.Debug("connection deregistered", "connId", connId, "userId", conn.User.Id)
}

func (r *Connections) Get(connId string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connId]
	return conn, ok
}

// ByUser resolves a user id to their live connection via the socket-user index.
func (r *Connections) ByUser(userId string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connId, ok := r.byUser[userId]
	if !ok {
		return nil, false
	}
	conn, ok := r.conns[connId]
	return conn, ok
}

func (r *Connections) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

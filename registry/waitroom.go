package registry

import (
	"sync"

	"github.com/MarineRcher/notAlone-sub002/types"
	"github.com/folkengine/goname"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// WaitingEntry is one anonymous user waiting to be grouped. At most one entry
// exists per user id.
type WaitingEntry struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
	ConnId   string `json:"-"`
}

// WaitroomState is the snapshot broadcast to waiting clients.
type WaitroomState struct {
	WaitingUsers []WaitingEntry `json:"waitingUsers"`
	MinMembers   int            `json:"minMembers"`
	CurrentCount int            `json:"currentCount"`
}

// Formation is the result of a quorum being reached: a freshly minted group
// and the full snapshot of users who were waiting at that instant.
type Formation struct {
	GroupId   string
	GroupName string
	Members   []WaitingEntry
}

// Waitroom accumulates users until the quorum is reached. All mutation plus
// the quorum check happen under one lock, so no join can interleave between
// the check and the snapshot-and-clear (the formation invariant depends on
// this).
type Waitroom struct {
	mu         sync.Mutex
	entries    map[string]*WaitingEntry
	order      []string
	minMembers int
	logger     hclog.Logger
}

func NewWaitroom(minMembers int, logger hclog.Logger) *Waitroom {
	return &Waitroom{
		entries:    make(map[string]*WaitingEntry),
		minMembers: minMembers,
		logger:     logger.Named("waitroom"),
	}
}

// Join inserts the user or, if they are already waiting, refreshes their
// connection id (reconnect). On the quorum-triggering insert the whole
// waiting set is snapshotted into a Formation and the waitroom is cleared
// before the lock is released.
//
// The returned state reflects the waitroom at the moment of the join (for the
// formation case: the pre-clear quorum count) and recipients lists the
// connection ids the state concerns.
func (w *Waitroom) Join(connId string, user types.UserIdentity) (state WaitroomState, recipients []string, rejoined bool, formation *Formation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if entry, ok := w.entries[user.Id]; ok {
		entry.ConnId = connId
		return w.stateLocked(), []string{connId}, true, nil
	}
	w.entries[user.Id] = &WaitingEntry{UserId: user.Id, Username: user.Username, ConnId: connId}
	w.order = append(w.order, user.Id)
	state = w.stateLocked()
	recipients = w.connIdsLocked()
	if len(w.entries) >= w.minMembers {
		formation = &Formation{
			GroupId:   uuid.New().String(),
			GroupName: goname.New(goname.FantasyMap).FirstLast(),
			Members:   state.WaitingUsers,
		}
		w.entries = make(map[string]*WaitingEntry)
		w.order = nil
		w.logger.Info("quorum reached, group formed",
			"groupId", formation.GroupId, "groupName", formation.GroupName, "members", len(formation.Members))
	}
	return state, recipients, false, formation
}

// Leave removes the user's entry if present and returns the updated state
// plus the connection ids of the remaining waiters.
func (w *Waitroom) Leave(userId string) (state WaitroomState, recipients []string, removed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entries[userId]; !ok {
		return w.stateLocked(), w.connIdsLocked(), false
	}
	delete(w.entries, userId)
	for i, id := range w.order {
		if id == userId {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return w.stateLocked(), w.connIdsLocked(), true
}

// Disconnect removes the user's entry only if it still belongs to the given
// connection. A stale disconnect after the user has already rejoined on a new
// connection leaves the fresh entry alone.
func (w *Waitroom) Disconnect(userId, connId string) (state WaitroomState, recipients []string, removed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	entry, ok := w.entries[userId]
	if !ok || entry.ConnId != connId {
		return w.stateLocked(), w.connIdsLocked(), false
	}
	delete(w.entries, userId)
	for i, id := range w.order {
		if id == userId {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return w.stateLocked(), w.connIdsLocked(), true
}

// State returns the current waitroom snapshot.
func (w *Waitroom) State() WaitroomState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *Waitroom) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (w *Waitroom) stateLocked() WaitroomState {
	users := make([]WaitingEntry, 0, len(w.order))
	for _, userId := range w.order {
		users = append(users, *w.entries[userId])
	}
	return WaitroomState{
		WaitingUsers: users,
		MinMembers:   w.minMembers,
		CurrentCount: len(users),
	}
}

func (w *Waitroom) connIdsLocked() []string {
	ids := make([]string, 0, len(w.order))
	for _, userId := range w.order {
		ids = append(ids, w.entries[userId].ConnId)
	}
	return ids
}

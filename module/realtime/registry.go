package realtime

import (
	"sort"
	"strings"
	"sync"

	"linkhub/tools/errs"
)

// FeedRoom receives broadcast post events. Every connection joins it on
// connect.
const FeedRoom = "feed"

type connEntry struct {
	identity string
	rooms    map[string]struct{}
}

// Registry maps identities to their live connections and tracks named room
// membership. It is process local and holds no persistent state.
//
// An identity's own room is byUser[identity]; named rooms such as the feed
// live in rooms, so an identity called "feed" cannot collide with it.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*connEntry
	byUser map[string]map[string]struct{}
	rooms  map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*connEntry),
		byUser: make(map[string]map[string]struct{}),
		rooms:  make(map[string]map[string]struct{}),
	}
}

func (r *Registry) entryLocked(connID string) *connEntry {
	e, ok := r.conns[connID]
	if !ok {
		e = &connEntry{rooms: make(map[string]struct{})}
		r.conns[connID] = e
	}
	return e
}

// Register binds connID to identity. Registering the same pair again changes
// nothing; a connection re-registered under another identity moves.
// It reports whether this was the identity's first live connection.
func (r *Registry) Register(identity, connID string) (first bool, err error) {
	if strings.TrimSpace(identity) == "" || connID == "" {
		return false, errs.ErrArgs.WrapMsg("register needs identity and connection id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entryLocked(connID)
	if e.identity == identity {
		return false, nil
	}
	if e.identity != "" {
		r.dropFromUserLocked(e.identity, connID)
	}
	e.identity = identity
	set, ok := r.byUser[identity]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[identity] = set
	}
	set[connID] = struct{}{}
	return len(set) == 1, nil
}

// Unregister forgets connID everywhere. Unknown ids are ignored. It returns
// the owning identity (empty for anonymous connections) and whether that
// identity has no live connection left.
func (r *Registry) Unregister(connID string) (identity string, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	for room := range e.rooms {
		r.dropFromRoomLocked(room, connID)
	}
	delete(r.conns, connID)
	if e.identity == "" {
		return "", false
	}
	return e.identity, r.dropFromUserLocked(e.identity, connID)
}

func (r *Registry) dropFromUserLocked(identity, connID string) (empty bool) {
	set := r.byUser[identity]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.byUser, identity)
		return true
	}
	return false
}

func (r *Registry) dropFromRoomLocked(room, connID string) {
	set := r.rooms[room]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.rooms, room)
	}
}

// Join adds connID to a named room, tracking the connection even before it
// has an identity.
func (r *Registry) Join(connID, room string) error {
	if connID == "" || strings.TrimSpace(room) == "" {
		return errs.ErrArgs.WrapMsg("join needs connection id and room")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entryLocked(connID)
	e.rooms[room] = struct{}{}
	set, ok := r.rooms[room]
	if !ok {
		set = make(map[string]struct{})
		r.rooms[room] = set
	}
	set[connID] = struct{}{}
	return nil
}

func (r *Registry) Leave(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(e.rooms, room)
	r.dropFromRoomLocked(room, connID)
}

// LiveConnections returns the identity's connection ids, sorted. Empty
// means the identity is offline.
func (r *Registry) LiveConnections(identity string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.byUser[identity])
}

func (r *Registry) RoomMembers(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.rooms[room])
}

func (r *Registry) IdentityOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[connID]
	if !ok || e.identity == "" {
		return "", false
	}
	return e.identity, true
}

func (r *Registry) Online(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[identity]) > 0
}

// Stats returns the number of tracked connections and online identities.
func (r *Registry) Stats() (conns, identities int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.byUser)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

package msu

import (
	"sync"
	"time"

	log "github.com/pion/ion-log"

	"github.com/nullcore1024/RTCPilot/pkg/proto"
	"github.com/nullcore1024/RTCPilot/pkg/util"
)

// Session is the connection handle of a registered MSU.
type Session interface {
	ID() string
	Notify(method string, data interface{}) error
}

// MSU is one registered media server unit.
type MSU struct {
	lock    sync.RWMutex
	id      string
	session Session
	aliveAt time.Time
}

// NewMSU creates an MSU record for a registering session.
func NewMSU(id string, s Session) *MSU {
	return &MSU{
		id:      id,
		session: s,
		aliveAt: time.Now(),
	}
}

// ID msu id
func (m *MSU) ID() string {
	return m.id
}

// Session current session of the MSU
func (m *MSU) Session() Session {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.session
}

// Alive reports whether the MSU registered or re-registered within ttl.
func (m *MSU) Alive(ttl time.Duration, now time.Time) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return now.Sub(m.aliveAt) < ttl
}

func (m *MSU) setSession(s Session) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.session = s
	m.aliveAt = time.Now()
}

// Manager is the registry of media server units. Rooms get assigned
// to an MSU on first join and keep it until the MSU is pruned.
type Manager struct {
	lock  sync.Mutex
	items map[string]*MSU
	rooms map[proto.RID]*MSU
}

// NewManager creates an MSU manager
func NewManager() *Manager {
	return &Manager{
		items: make(map[string]*MSU),
		rooms: make(map[proto.RID]*MSU),
	}
}

// Get returns the MSU registered under id, nil if unknown.
func (m *Manager) Get(id string) *MSU {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.items[id]
}

// AddOrUpdate registers an MSU or refreshes an existing registration
// with a new session. Idempotent either way.
func (m *Manager) AddOrUpdate(s Session, id string) *MSU {
	if id == "" {
		return nil
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	item := m.items[id]
	if item == nil {
		item = NewMSU(id, s)
		m.items[id] = item
		log.Infof("msu added: %s", id)
	} else {
		item.setSession(s)
		log.Infof("msu updated: %s", id)
	}
	return item
}

// Remove drops an MSU and any room assignments pointing at it.
func (m *Manager) Remove(id string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	item, ok := m.items[id]
	if !ok {
		return false
	}
	delete(m.items, id)
	for rid, assigned := range m.rooms {
		if assigned == item {
			delete(m.rooms, rid)
		}
	}
	log.Infof("msu removed: %s", id)
	return true
}

// IDs lists the registered MSU ids.
func (m *Manager) IDs() []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	ids := make([]string, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	return ids
}

// HandleJoinRoom tells the room's MSU that a user joined, assigning
// the first available MSU when the room has none yet. A room without
// any reachable MSU is logged and tolerated.
func (m *Manager) HandleJoinRoom(rid proto.RID, uid proto.UID, name string) error {
	target := m.assign(rid)
	if target == nil {
		log.Warnf("no msu available for room %s", rid)
		return nil
	}

	s := target.Session()
	if s == nil {
		log.Warnf("msu %s for room %s has no session", target.ID(), rid)
		return nil
	}

	return s.Notify(proto.MsuJoinRoom, &proto.JoinRoomMsg{
		RoomID:   rid,
		UserID:   uid,
		UserName: name,
	})
}

func (m *Manager) assign(rid proto.RID) *MSU {
	m.lock.Lock()
	defer m.lock.Unlock()

	if msu := m.rooms[rid]; msu != nil {
		return msu
	}
	for _, item := range m.items {
		m.rooms[rid] = item
		return item
	}
	return nil
}

// PruneStale drops MSUs that have not re-registered within ttl and
// returns their ids.
func (m *Manager) PruneStale(ttl time.Duration) []string {
	now := time.Now()

	m.lock.Lock()
	defer m.lock.Unlock()

	var removed []string
	for id, item := range m.items {
		if item.Alive(ttl, now) {
			continue
		}
		delete(m.items, id)
		for rid, assigned := range m.rooms {
			if assigned == item {
				delete(m.rooms, rid)
			}
		}
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		log.Infof("pruned stale msu: %v", removed)
	}
	return removed
}

// PruneLoop prunes stale MSUs every interval until closed is closed.
func (m *Manager) PruneLoop(ttl, interval time.Duration, closed <-chan struct{}) {
	defer util.Recover("msu.PruneLoop")
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.PruneStale(ttl)
		case <-closed:
			return
		}
	}
}

package room

import (
	"sync"

	"github.com/nullcore1024/RTCPilot/pkg/proto"
)

// Session is the connection handle a room delivers to. It is
// implemented by the signal layer; the room never owns its lifetime.
type Session interface {
	ID() string
	Notify(method string, data interface{}) error
	Respond(reqID interface{}, data interface{}) error
	RespondError(reqID interface{}, code int, reason string) error
}

// User is a logical room member. A user keeps at most one live
// session back-reference; associating a new session silently replaces
// the previous one without notifying the displaced connection.
type User struct {
	id   proto.UID
	name string

	lock    sync.RWMutex
	session Session
	pushers map[string]proto.PushInfo
}

// NewUser creates a user
func NewUser(id proto.UID, name string) *User {
	return &User{
		id:      id,
		name:    name,
		pushers: make(map[string]proto.PushInfo),
	}
}

// ID user id, unique within the room
func (u *User) ID() proto.UID {
	return u.id
}

// Name display name
func (u *User) Name() string {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.name
}

// SetSession associates a session, replacing any prior association.
func (u *User) SetSession(s Session) {
	u.lock.Lock()
	defer u.lock.Unlock()
	u.session = s
}

// ClearSession drops the back-reference, but only when it still points
// at s. Reports whether it was cleared.
func (u *User) ClearSession(s Session) bool {
	u.lock.Lock()
	defer u.lock.Unlock()
	if u.session != s {
		return false
	}
	u.session = nil
	return true
}

// Session returns the current session, nil if the user is detached.
func (u *User) Session() Session {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.session
}

// HasSession reports whether the user is attached to a session.
func (u *User) HasSession() bool {
	u.lock.RLock()
	defer u.lock.RUnlock()
	return u.session != nil
}

// SetPusher stores or replaces a published stream keyed by pusher id.
func (u *User) SetPusher(info proto.PushInfo) {
	u.lock.Lock()
	defer u.lock.Unlock()
	u.pushers[info.PusherID] = info
}

// Pushers returns a copy of the user's published streams.
func (u *User) Pushers() []proto.PushInfo {
	u.lock.RLock()
	defer u.lock.RUnlock()
	pushers := make([]proto.PushInfo, 0, len(u.pushers))
	for _, info := range u.pushers {
		pushers = append(pushers, info)
	}
	return pushers
}

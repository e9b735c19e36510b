package room

import (
	"encoding/json"
	"sync"

	log "github.com/pion/ion-log"

	"github.com/nullcore1024/RTCPilot/pkg/proto"
	"github.com/nullcore1024/RTCPilot/pkg/util"
)

// Room holds the authoritative per-room state: users keyed by id and
// the sessions registered for room-wide broadcast. One session may
// appear while representing several users (relay scenarios), so
// clearing a user's back-reference never prunes the session map.
type Room struct {
	id proto.RID

	lock     sync.RWMutex
	users    map[proto.UID]*User
	sessions map[string]Session
}

// NewRoom creates a room instance
func NewRoom(id proto.RID) *Room {
	log.Infof("room created, rid=%s", id)
	return &Room{
		id:       id,
		users:    make(map[proto.UID]*User),
		sessions: make(map[string]Session),
	}
}

// ID room id
func (r *Room) ID() proto.RID {
	return r.id
}

// AddUser add a user to the room, reports whether it was added
func (r *Room) AddUser(u *User) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.users[u.ID()]; ok {
		return false
	}
	r.users[u.ID()] = u
	return true
}

// RemoveUser remove a user by id, reports whether it was present
func (r *Room) RemoveUser(uid proto.UID) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.users[uid]; !ok {
		return false
	}
	delete(r.users, uid)
	return true
}

// GetUser get a user by id
func (r *Room) GetUser(uid proto.UID) *User {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.users[uid]
}

// Users snapshot of the room members
func (r *Room) Users() []*User {
	r.lock.RLock()
	defer r.lock.RUnlock()
	users := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	return users
}

// UserCount member count
func (r *Room) UserCount() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.users)
}

// AddSession register a session for room-wide broadcasts, a no-op if
// already registered under the same id
func (r *Room) AddSession(s Session) {
	if s == nil || s.ID() == "" {
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sessions[s.ID()] = s
}

// RemoveSession drop a session from the broadcast registry
func (r *Room) RemoveSession(id string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.sessions, id)
}

// Sessions snapshot of the broadcast registry
func (r *Room) Sessions() []Session {
	r.lock.RLock()
	defer r.lock.RUnlock()
	sessions := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// SessionCount registered session count
func (r *Room) SessionCount() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.sessions)
}

// HandleJoin adds the user if unknown, attaches the session and
// returns the room snapshot for the joiner. Unless the joiner is an
// audience member, the other sessions are told about the new user.
func (r *Room) HandleJoin(uid proto.UID, name string, audience bool, s Session) *proto.JoinReply {
	log.Infof("user %s(%s) joining room %s", uid, name, r.id)

	u := r.GetUser(uid)
	if u == nil {
		u = NewUser(uid, name)
		r.AddUser(u)
	} else {
		log.Infof("user %s already exists in room %s", uid, r.id)
	}

	if s != nil {
		u.SetSession(s)
		r.AddSession(s)
	}

	if !audience {
		r.NotifyExcept(uid, proto.ClientOnNewUser, &proto.UserJoinedMsg{
			RoomID:   r.id,
			UserID:   uid,
			UserName: name,
		})
	}

	reply := &proto.JoinReply{
		Code:    0,
		Message: "join success",
		RoomID:  r.id,
		Users:   []proto.UserInfo{},
	}
	for _, other := range r.Users() {
		if other.ID() == uid {
			continue
		}
		reply.Users = append(reply.Users, proto.UserInfo{
			UserID:   other.ID(),
			UserName: other.Name(),
			Pushers:  other.Pushers(),
		})
	}
	return reply
}

// Notify broadcasts a notification to every registered session. Each
// delivery is an independent fire-and-forget send; one failing or
// stalling session never affects the others.
func (r *Room) Notify(method string, data interface{}) {
	for _, s := range r.Sessions() {
		r.notify(s, method, data)
	}
}

// NotifyExcept broadcasts like Notify but skips the session currently
// associated with uid, if any.
func (r *Room) NotifyExcept(uid proto.UID, method string, data interface{}) {
	var excluded Session
	if u := r.GetUser(uid); u != nil {
		excluded = u.Session()
	}
	for _, s := range r.Sessions() {
		if s == excluded {
			continue
		}
		r.notify(s, method, data)
	}
}

func (r *Room) notify(s Session, method string, data interface{}) {
	go func() {
		defer util.Recover("room.notify")
		if err := s.Notify(method, data); err != nil {
			log.Debugf("room %s: notify %s to %s failed: %v", r.id, method, s.ID(), err)
		}
	}()
}

// HandleUserDisconnect clears the user's session back-reference and
// tells the others. The user and the session registry entry stay: the
// session may carry other users, and a disconnected user can rejoin.
func (r *Room) HandleUserDisconnect(msg *proto.UserDisconnectMsg, s Session) {
	u := r.GetUser(msg.UserID)
	if u == nil {
		log.Infof("userDisconnect for unknown user %s in room %s", msg.UserID, r.id)
		return
	}

	r.NotifyExcept(msg.UserID, proto.ClientUserDisconnect, &proto.UserDisconnectMsg{
		RoomID: r.id,
		UserID: msg.UserID,
	})
	u.ClearSession(s)
}

// HandleUserLeave clears the user's session back-reference, tells the
// others and removes the user from the room for good.
func (r *Room) HandleUserLeave(msg *proto.UserLeaveMsg, s Session) {
	u := r.GetUser(msg.UserID)
	if u == nil {
		log.Infof("userLeave for unknown user %s in room %s", msg.UserID, r.id)
		return
	}

	r.NotifyExcept(msg.UserID, proto.ClientUserLeave, &proto.UserLeaveMsg{
		RoomID: r.id,
		UserID: msg.UserID,
	})
	u.ClearSession(s)
	r.RemoveUser(msg.UserID)
}

// HandleTextMessage relays a chat line to everyone but the sender.
func (r *Room) HandleTextMessage(msg *proto.TextMessageMsg, s Session) {
	r.NotifyExcept(msg.UserID, proto.ClientTextMessage, &proto.TextMessageMsg{
		RoomID:   r.id,
		UserID:   msg.UserID,
		UserName: msg.UserName,
		Message:  msg.Message,
	})
}

// HandlePush records the announced pushers on the publishing user,
// creating the user on the fly if the push arrives first, and tells
// everyone but the publisher. The update carries exactly the set
// submitted by this push, not the user's cumulative set.
func (r *Room) HandlePush(msg *proto.PushMsg, s Session) {
	u := r.GetUser(msg.UserID)
	if u == nil {
		log.Infof("push from unknown user %s in room %s", msg.UserID, r.id)
		u = NewUser(msg.UserID, msg.UserName)
		r.AddUser(u)
	}

	submitted := make([]proto.PushInfo, 0, len(msg.Publishers))
	for _, info := range msg.Publishers {
		u.SetPusher(info)
		submitted = append(submitted, info)
	}

	r.NotifyExcept(msg.UserID, proto.ClientOnPusher, &proto.PusherUpdateMsg{
		RoomID:   r.id,
		UserID:   msg.UserID,
		UserName: u.Name(),
		Pushers:  submitted,
	})
}

// HandlePullRemoteStream forwards the pull request, payload verbatim,
// to the single session of the user publishing the wanted stream.
// Never a broadcast.
func (r *Room) HandlePullRemoteStream(pusherUID proto.UID, payload json.RawMessage) {
	u := r.GetUser(pusherUID)
	if u == nil {
		log.Infof("pullRemoteStream for unknown pusher user %s in room %s", pusherUID, r.id)
		return
	}
	target := u.Session()
	if target == nil {
		log.Infof("pullRemoteStream for pusher user %s with no session in room %s", pusherUID, r.id)
		return
	}

	log.Infof("forwarding pullRemoteStream to pusher user %s in room %s", pusherUID, r.id)
	r.notify(target, proto.ClientPullRemoteStream, payload)
}

// HandleASRResult rebroadcasts a transcription as a bot text message
// to every session, the speaker included.
func (r *Room) HandleASRResult(msg *proto.ASRResultMsg, s Session) {
	r.Notify(proto.ClientTextMessage, &proto.TextMessageMsg{
		RoomID:   r.id,
		UserID:   proto.ASRBotUID,
		UserName: proto.ASRBotName,
		Message:  msg.UserName + ": " + msg.Result,
	})
}

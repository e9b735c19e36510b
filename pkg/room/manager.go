package room

import (
	"encoding/json"
	"sync"

	log "github.com/pion/ion-log"

	"github.com/nullcore1024/RTCPilot/pkg/proto"
	"github.com/nullcore1024/RTCPilot/pkg/util"
)

// Manager owns every Room of the process. Rooms are created lazily on
// first reference and live until DeleteRoom; there is no automatic
// expiry.
type Manager struct {
	lock  sync.Mutex
	rooms map[proto.RID]*Room
}

// NewManager creates a room manager
func NewManager() *Manager {
	return &Manager{
		rooms: make(map[proto.RID]*Room),
	}
}

// GetOrCreateRoom returns the room for rid, creating and registering
// it if missing. Exactly one Room instance exists per id until it is
// explicitly deleted.
func (m *Manager) GetOrCreateRoom(rid proto.RID) *Room {
	m.lock.Lock()
	defer m.lock.Unlock()
	r := m.rooms[rid]
	if r == nil {
		r = NewRoom(rid)
		m.rooms[rid] = r
	}
	return r
}

// GetRoom returns the room for rid, nil if unknown.
func (m *Manager) GetRoom(rid proto.RID) *Room {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.rooms[rid]
}

// DeleteRoom removes a room, reports whether it existed. This is the
// only way a room goes away.
func (m *Manager) DeleteRoom(rid proto.RID) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.rooms[rid]; !ok {
		return false
	}
	delete(m.rooms, rid)
	log.Infof("room deleted, rid=%s", rid)
	return true
}

// Rooms snapshot of all rooms
func (m *Manager) Rooms() []*Room {
	m.lock.Lock()
	defer m.lock.Unlock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// GetUser resolves a user inside a room, nil when either is unknown.
func (m *Manager) GetUser(rid proto.RID, uid proto.UID) *User {
	r := m.GetRoom(rid)
	if r == nil {
		return nil
	}
	return r.GetUser(uid)
}

// HandleJoin routes a join to its room, creating the room on demand.
func (m *Manager) HandleJoin(rid proto.RID, uid proto.UID, name string, audience bool, s Session) *proto.JoinReply {
	return m.GetOrCreateRoom(rid).HandleJoin(uid, name, audience, s)
}

// HandlePushNotification routes a push to its room. Reports false when
// the payload carries no room id; forwarding itself always succeeds.
func (m *Manager) HandlePushNotification(data json.RawMessage, s Session) bool {
	var msg proto.PushMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.RoomID == "" {
		log.Errorf("push notification without room id: %v", err)
		return false
	}
	m.GetOrCreateRoom(msg.RoomID).HandlePush(&msg, s)
	return true
}

// HandlePullRemoteStreamNotification routes a pull request to its
// room, handing the raw payload along for verbatim forwarding.
func (m *Manager) HandlePullRemoteStreamNotification(data json.RawMessage, s Session) bool {
	var msg proto.PullRemoteStreamMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.RoomID == "" {
		log.Errorf("pullRemoteStream notification without room id: %v", err)
		return false
	}
	m.GetOrCreateRoom(msg.RoomID).HandlePullRemoteStream(msg.PusherUserID, data)
	return true
}

// HandleUserDisconnectNotification routes a disconnect to its room.
func (m *Manager) HandleUserDisconnectNotification(data json.RawMessage, s Session) bool {
	var msg proto.UserDisconnectMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.RoomID == "" {
		log.Errorf("userDisconnect notification without room id: %v", err)
		return false
	}
	m.GetOrCreateRoom(msg.RoomID).HandleUserDisconnect(&msg, s)
	return true
}

// HandleUserLeaveNotification routes a leave to its room.
func (m *Manager) HandleUserLeaveNotification(data json.RawMessage, s Session) bool {
	var msg proto.UserLeaveMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.RoomID == "" {
		log.Errorf("userLeave notification without room id: %v", err)
		return false
	}
	m.GetOrCreateRoom(msg.RoomID).HandleUserLeave(&msg, s)
	return true
}

// HandleTextMessageNotification routes a chat line to its room.
func (m *Manager) HandleTextMessageNotification(data json.RawMessage, s Session) bool {
	var msg proto.TextMessageMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.RoomID == "" {
		log.Errorf("textMessage notification without room id: %v", err)
		return false
	}
	m.GetOrCreateRoom(msg.RoomID).HandleTextMessage(&msg, s)
	return true
}

// HandleASRResultNotification routes a transcription to its room.
func (m *Manager) HandleASRResultNotification(data json.RawMessage, s Session) bool {
	var msg proto.ASRResultMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.RoomID == "" {
		log.Errorf("asrResult notification without room id: %v", err)
		return false
	}
	m.GetOrCreateRoom(msg.RoomID).HandleASRResult(&msg, s)
	return true
}

// NotifyUser fires a notification at one user's current session.
// Reports whether a send was scheduled; delivery stays best-effort.
func (m *Manager) NotifyUser(rid proto.RID, uid proto.UID, method string, data interface{}) bool {
	u := m.GetUser(rid, uid)
	if u == nil {
		return false
	}
	s := u.Session()
	if s == nil {
		return false
	}
	go func() {
		defer util.Recover("manager.notifyUser")
		if err := s.Notify(method, data); err != nil {
			log.Debugf("notify %s to user %s failed: %v", method, uid, err)
		}
	}()
	return true
}

// SendResponseOK schedules a success response on one user's current
// session. Reports whether a send was scheduled.
func (m *Manager) SendResponseOK(rid proto.RID, uid proto.UID, reqID interface{}, data interface{}) bool {
	u := m.GetUser(rid, uid)
	if u == nil {
		return false
	}
	s := u.Session()
	if s == nil {
		return false
	}
	go func() {
		defer util.Recover("manager.sendResponseOK")
		if err := s.Respond(reqID, data); err != nil {
			log.Debugf("respond to user %s failed: %v", uid, err)
		}
	}()
	return true
}

// SendResponseError schedules an error response on one user's current
// session. Reports whether a send was scheduled.
func (m *Manager) SendResponseError(rid proto.RID, uid proto.UID, reqID interface{}, code int, reason string) bool {
	u := m.GetUser(rid, uid)
	if u == nil {
		return false
	}
	s := u.Session()
	if s == nil {
		return false
	}
	go func() {
		defer util.Recover("manager.sendResponseError")
		if err := s.RespondError(reqID, code, reason); err != nil {
			log.Debugf("respond error to user %s failed: %v", uid, err)
		}
	}()
	return true
}

package signal

import (
	"sync"

	log "github.com/pion/ion-log"

	"github.com/nullcore1024/RTCPilot/pkg/proto"
	"github.com/nullcore1024/RTCPilot/pkg/protoo"
)

// Session binds one protoo peer to the rooms it has joined. It routes
// the peer's requests and notifications into the room and msu managers
// and unwinds its room state when the connection dies.
type Session struct {
	*protoo.Peer
	server *Server

	lock           sync.Mutex
	msuID          string
	participations map[proto.RID]map[proto.UID]struct{}
}

func newSession(server *Server, peer *protoo.Peer) *Session {
	s := &Session{
		Peer:           peer,
		server:         server,
		participations: make(map[proto.RID]map[proto.UID]struct{}),
	}

	peer.On("request", func(req protoo.Request, accept protoo.AcceptFunc, reject protoo.RejectFunc) {
		s.handleRequest(req, accept, reject)
	})
	peer.On("notification", func(notification protoo.Notification) {
		s.handleNotification(notification)
	})
	peer.On("close", func() {
		s.handleClose()
	})
	return s
}

func (s *Session) setMSUID(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.msuID = id
}

func (s *Session) takeMSUID() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	id := s.msuID
	s.msuID = ""
	return id
}

// addParticipation records that this connection speaks for uid in rid.
// A connection may carry several users in the same room (relay case),
// so the record is a set per room, never a single slot.
func (s *Session) addParticipation(rid proto.RID, uid proto.UID) {
	s.lock.Lock()
	defer s.lock.Unlock()
	uids := s.participations[rid]
	if uids == nil {
		uids = make(map[proto.UID]struct{})
		s.participations[rid] = uids
	}
	uids[uid] = struct{}{}
}

func (s *Session) removeParticipation(rid proto.RID, uid proto.UID) {
	s.lock.Lock()
	defer s.lock.Unlock()
	uids := s.participations[rid]
	if uids == nil {
		return
	}
	delete(uids, uid)
	if len(uids) == 0 {
		delete(s.participations, rid)
	}
}

func (s *Session) takeParticipations() map[proto.RID]map[proto.UID]struct{} {
	s.lock.Lock()
	defer s.lock.Unlock()
	taken := s.participations
	s.participations = make(map[proto.RID]map[proto.UID]struct{})
	return taken
}

// handleClose unwinds the session after the socket is gone. Each room
// pair is cleaned independently so one failure cannot strand another
// room's state.
func (s *Session) handleClose() {
	log.Infof("session %s closed", s.ID())
	s.server.unregister(s)
	if id := s.takeMSUID(); id != "" && s.server.msuManager != nil {
		s.server.msuManager.Remove(id)
	}

	if s.server.roomManager == nil {
		return
	}
	for rid, uids := range s.takeParticipations() {
		r := s.server.roomManager.GetRoom(rid)
		if r == nil {
			continue
		}
		for uid := range uids {
			if u := r.GetUser(uid); u != nil {
				u.ClearSession(s)
				if !u.HasSession() {
					r.RemoveUser(uid)
				}
			}
		}
		r.RemoveSession(s.ID())
	}
}

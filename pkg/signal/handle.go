package signal

import (
	"encoding/json"

	log "github.com/pion/ion-log"

	"github.com/nullcore1024/RTCPilot/pkg/proto"
	"github.com/nullcore1024/RTCPilot/pkg/protoo"
)

func (s *Session) handleRequest(req protoo.Request, accept protoo.AcceptFunc, reject protoo.RejectFunc) {
	log.Debugf("session %s request: method => %s, data => %s", s.ID(), req.Method, req.Data)

	switch req.Method {
	case proto.ClientEcho:
		data := json.RawMessage("null")
		if len(req.Data) > 0 {
			data = req.Data
		}
		accept(map[string]interface{}{"echo": data})

	case proto.ClientRegister:
		s.register(req, accept, reject)

	case proto.ClientJoin:
		s.join(req, accept, reject)

	default:
		reject(protoo.CodeNotFound, "unknown method: "+req.Method)
	}
}

func (s *Session) register(req protoo.Request, accept protoo.AcceptFunc, reject protoo.RejectFunc) {
	var msg proto.RegisterMsg
	if err := json.Unmarshal(req.Data, &msg); err != nil || msg.ID == "" {
		reject(protoo.CodeBadRequest, "invalid register id")
		return
	}

	if s.server.msuManager != nil {
		s.server.msuManager.AddOrUpdate(s, msg.ID)
		s.setMSUID(msg.ID)
	}
	accept(proto.RegisterReply{Registered: true, MsuID: msg.ID})
}

func (s *Session) join(req protoo.Request, accept protoo.AcceptFunc, reject protoo.RejectFunc) {
	if s.server.roomManager == nil {
		// no room engine attached, acknowledge any payload and keep
		// no state
		accept(map[string]bool{"joined": true})
		return
	}

	// only missing or wrong-typed ids are rejected, empty strings pass
	var msg proto.JoinMsg
	if err := json.Unmarshal(req.Data, &msg); err != nil || msg.RoomID == nil || msg.UserID == nil {
		reject(protoo.CodeBadRequest, "invalid roomId or userId")
		return
	}
	rid, uid := *msg.RoomID, *msg.UserID

	reply := s.server.roomManager.HandleJoin(rid, uid, msg.UserName, msg.Audience, s)
	s.addParticipation(rid, uid)

	if !msg.Audience && s.server.msuManager != nil {
		if err := s.server.msuManager.HandleJoinRoom(rid, uid, msg.UserName); err != nil {
			log.Warnf("session %s: msu joinRoom for %s/%s: %v", s.ID(), rid, uid, err)
		}
	}
	accept(reply)
}

func (s *Session) handleNotification(notification protoo.Notification) {
	log.Debugf("session %s notification: method => %s, data => %s", s.ID(), notification.Method, notification.Data)

	rm := s.server.roomManager
	if rm == nil {
		log.Warnf("session %s: notification %s without room manager", s.ID(), notification.Method)
		return
	}

	switch notification.Method {
	case proto.ClientPush:
		rm.HandlePushNotification(notification.Data, s)
	case proto.ClientPullRemoteStream:
		rm.HandlePullRemoteStreamNotification(notification.Data, s)
	case proto.ClientUserDisconnect:
		rm.HandleUserDisconnectNotification(notification.Data, s)
	case proto.ClientUserLeave:
		s.handleUserLeave(notification.Data)
	case proto.ClientTextMessage:
		rm.HandleTextMessageNotification(notification.Data, s)
	case proto.ClientASRResult:
		rm.HandleASRResultNotification(notification.Data, s)
	default:
		log.Errorf("session %s: unhandled notification %s", s.ID(), notification.Method)
	}
}

// handleUserLeave also drops the session's participation record for
// exactly this (room, user) pair so the close cascade does not touch
// it again; other users carried by the connection keep theirs.
func (s *Session) handleUserLeave(data json.RawMessage) {
	var msg proto.UserLeaveMsg
	if err := json.Unmarshal(data, &msg); err == nil && msg.RoomID != "" {
		s.removeParticipation(msg.RoomID, msg.UserID)
	}
	s.server.roomManager.HandleUserLeaveNotification(data, s)
}

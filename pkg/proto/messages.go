package proto

// RtpParam carries the RTP negotiation parameters a pusher announced.
// The pilot never interprets them, it only round-trips them between
// the wire and the room state.
type RtpParam map[string]interface{}

// PushInfo describes one published media stream of a user.
type PushInfo struct {
	PusherID string   `json:"pusherId"`
	RtpParam RtpParam `json:"rtpParam"`
}

/// Requests ///

// RegisterMsg is sent by an MSU to announce itself.
type RegisterMsg struct {
	ID string `json:"id"`
}

// RegisterReply answers a register request.
type RegisterReply struct {
	Registered bool   `json:"registered"`
	MsuID      string `json:"msuId"`
}

// JoinMsg is sent by a client to join a room. The id fields are
// pointers so a missing field is distinguishable from an empty string,
// which is a legal id.
type JoinMsg struct {
	RoomID   *RID   `json:"roomId"`
	UserID   *UID   `json:"userId"`
	UserName string `json:"userName"`
	Audience bool   `json:"audience"`
}

// JoinReply is the room snapshot returned to a joining user, listing
// every other member and its pushers.
type JoinReply struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	RoomID  RID        `json:"roomId"`
	Users   []UserInfo `json:"users"`
}

// UserInfo describes one room member inside a JoinReply.
type UserInfo struct {
	UserID   UID        `json:"userId"`
	UserName string     `json:"userName"`
	Pushers  []PushInfo `json:"pushers"`
}

/// Notifications, client to pilot ///

// PushMsg announces the streams a user started publishing.
type PushMsg struct {
	RoomID     RID        `json:"roomId"`
	UserID     UID        `json:"userId"`
	UserName   string     `json:"userName"`
	Publishers []PushInfo `json:"publishers"`
}

// PullRemoteStreamMsg asks the pilot to relay a pull request to the
// session of the user publishing the wanted stream. Only the fields
// the pilot routes on are typed; the payload is forwarded verbatim.
type PullRemoteStreamMsg struct {
	RoomID       RID `json:"roomId"`
	PusherUserID UID `json:"pusher_user_id"`
}

// UserDisconnectMsg reports a dropped user. The user stays in the room.
type UserDisconnectMsg struct {
	RoomID RID `json:"roomId"`
	UserID UID `json:"userId"`
}

// UserLeaveMsg reports a user leaving for good.
type UserLeaveMsg struct {
	RoomID RID `json:"roomId"`
	UserID UID `json:"userId"`
}

// TextMessageMsg carries a chat line.
type TextMessageMsg struct {
	RoomID   RID    `json:"roomId"`
	UserID   UID    `json:"userId"`
	UserName string `json:"userName"`
	Message  string `json:"message"`
}

// ASRResultMsg carries one transcription result for a user.
type ASRResultMsg struct {
	RoomID   RID    `json:"roomId"`
	UserID   UID    `json:"userId"`
	UserName string `json:"userName"`
	Result   string `json:"result"`
}

/// Notifications, pilot to client ///

// UserJoinedMsg tells room members about a new user.
type UserJoinedMsg struct {
	RoomID   RID    `json:"roomId"`
	UserID   UID    `json:"userId"`
	UserName string `json:"userName"`
}

// PusherUpdateMsg tells room members about freshly announced pushers.
// Pushers holds exactly the set submitted by the triggering push, not
// the user's cumulative set.
type PusherUpdateMsg struct {
	RoomID   RID        `json:"roomId"`
	UserID   UID        `json:"userId"`
	UserName string     `json:"userName"`
	Pushers  []PushInfo `json:"pushers"`
}

// JoinRoomMsg tells an MSU that a user joined one of its rooms.
type JoinRoomMsg struct {
	RoomID   RID    `json:"roomId"`
	UserID   UID    `json:"userId"`
	UserName string `json:"userName"`
}

package room

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetOrCreateRoomReturnsSameInstance(t *testing.T) {
	m := NewManager()
	a := m.GetOrCreateRoom("room1")
	b := m.GetOrCreateRoom("room1")
	assert.Same(t, a, b)
	assert.Nil(t, m.GetRoom("room2"))
}

func TestDeleteRoom(t *testing.T) {
	m := NewManager()
	m.GetOrCreateRoom("room1")

	assert.True(t, m.DeleteRoom("room1"))
	assert.Nil(t, m.GetRoom("room1"))
	assert.False(t, m.DeleteRoom("room1"))
}

func TestNotificationRoutingValidation(t *testing.T) {
	m := NewManager()
	s := newFakeSession("s1")

	// malformed json and missing roomId are both rejected without
	// creating state
	assert.False(t, m.HandlePushNotification(json.RawMessage(`{`), s))
	assert.False(t, m.HandlePushNotification(json.RawMessage(`{"userId":"alice"}`), s))
	assert.False(t, m.HandleUserLeaveNotification(json.RawMessage(`{}`), s))
	assert.False(t, m.HandleTextMessageNotification(json.RawMessage(`not json`), s))
	assert.False(t, m.HandleASRResultNotification(json.RawMessage(`{}`), s))
	assert.False(t, m.HandlePullRemoteStreamNotification(json.RawMessage(`{}`), s))
	assert.False(t, m.HandleUserDisconnectNotification(json.RawMessage(`{}`), s))
	assert.Len(t, m.Rooms(), 0)
}

func TestPushNotificationCreatesRoomAndUser(t *testing.T) {
	m := NewManager()
	s := newFakeSession("s1")

	ok := m.HandlePushNotification(json.RawMessage(
		`{"roomId":"room1","userId":"alice","userName":"Alice","publishers":[{"pusherId":"cam0","rtpParam":{}}]}`), s)
	assert.True(t, ok)

	u := m.GetUser("room1", "alice")
	assert.NotNil(t, u)
	assert.Len(t, u.Pushers(), 1)
}

func TestNotifyUserRequiresLiveSession(t *testing.T) {
	m := NewManager()
	s := newFakeSession("s1")

	assert.False(t, m.NotifyUser("room1", "alice", "ping", nil))

	m.HandleJoin("room1", "alice", "Alice", false, s)
	assert.True(t, m.NotifyUser("room1", "alice", "ping", nil))
	n := s.wait(t)
	assert.Equal(t, "ping", n.method)

	m.GetUser("room1", "alice").ClearSession(s)
	assert.False(t, m.NotifyUser("room1", "alice", "ping", nil))
	assert.False(t, m.SendResponseOK("room1", "alice", 1, nil))
	assert.False(t, m.SendResponseError("room1", "alice", 1, 500, "x"))
}

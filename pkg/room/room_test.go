package room

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nullcore1024/RTCPilot/pkg/proto"
)

type sentNotification struct {
	method string
	data   interface{}
}

// fakeSession records deliveries on a channel so tests can wait for
// the asynchronous broadcast goroutines.
type fakeSession struct {
	id     string
	notify chan sentNotification
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id, notify: make(chan sentNotification, 16)}
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) Notify(method string, data interface{}) error {
	f.notify <- sentNotification{method: method, data: data}
	return nil
}

func (f *fakeSession) Respond(reqID interface{}, data interface{}) error { return nil }

func (f *fakeSession) RespondError(reqID interface{}, code int, reason string) error { return nil }

func (f *fakeSession) wait(t *testing.T) sentNotification {
	t.Helper()
	select {
	case n := <-f.notify:
		return n
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return sentNotification{}
	}
}

func (f *fakeSession) expectNone(t *testing.T) {
	t.Helper()
	select {
	case n := <-f.notify:
		t.Fatalf("unexpected notification %s", n.method)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestJoinReturnsSnapshotWithoutJoiner(t *testing.T) {
	r := NewRoom("room1")
	alice := newFakeSession("s-alice")
	bob := newFakeSession("s-bob")

	r.HandleJoin("alice", "Alice", false, alice)
	r.HandlePush(&proto.PushMsg{
		RoomID: "room1", UserID: "alice", UserName: "Alice",
		Publishers: []proto.PushInfo{{PusherID: "cam0", RtpParam: proto.RtpParam{"pt": float64(96)}}},
	}, alice)

	reply := r.HandleJoin("bob", "Bob", false, bob)
	assert.Equal(t, 0, reply.Code)
	assert.Equal(t, "join success", reply.Message)
	assert.Equal(t, proto.RID("room1"), reply.RoomID)
	assert.Len(t, reply.Users, 1)
	assert.Equal(t, proto.UID("alice"), reply.Users[0].UserID)
	assert.Equal(t, "Alice", reply.Users[0].UserName)
	assert.Len(t, reply.Users[0].Pushers, 1)
	assert.Equal(t, "cam0", reply.Users[0].Pushers[0].PusherID)

	n := alice.wait(t)
	assert.Equal(t, proto.ClientOnNewUser, n.method)
	joined := n.data.(*proto.UserJoinedMsg)
	assert.Equal(t, proto.UID("bob"), joined.UserID)
	assert.Equal(t, "Bob", joined.UserName)

	bob.expectNone(t)
}

func TestAudienceJoinIsSilent(t *testing.T) {
	r := NewRoom("room1")
	alice := newFakeSession("s-alice")
	watcher := newFakeSession("s-watcher")

	r.HandleJoin("alice", "Alice", false, alice)
	reply := r.HandleJoin("watcher", "Watcher", true, watcher)

	assert.Len(t, reply.Users, 1)
	alice.expectNone(t)
}

func TestRejoinIsIdempotent(t *testing.T) {
	r := NewRoom("room1")
	first := newFakeSession("s-first")
	second := newFakeSession("s-second")

	r.HandleJoin("alice", "Alice", false, first)
	r.HandleJoin("alice", "Alice", false, second)

	assert.Equal(t, 1, r.UserCount())
	assert.Same(t, second, r.GetUser("alice").Session())
}

func TestUserDisconnectKeepsUser(t *testing.T) {
	r := NewRoom("room1")
	alice := newFakeSession("s-alice")
	bob := newFakeSession("s-bob")

	r.HandleJoin("alice", "Alice", false, alice)
	r.HandleJoin("bob", "Bob", false, bob)
	alice.wait(t) // newUser for bob

	r.HandleUserDisconnect(&proto.UserDisconnectMsg{RoomID: "room1", UserID: "alice"}, alice)

	n := bob.wait(t)
	assert.Equal(t, "userDisconnect", n.method)

	u := r.GetUser("alice")
	assert.NotNil(t, u)
	assert.False(t, u.HasSession())
	assert.Equal(t, 2, r.SessionCount())
}

func TestDisconnectOnlyClearsMatchingSession(t *testing.T) {
	r := NewRoom("room1")
	old := newFakeSession("s-old")
	fresh := newFakeSession("s-fresh")

	r.HandleJoin("alice", "Alice", false, old)
	r.HandleJoin("alice", "Alice", false, fresh)

	// a stale disconnect from the replaced connection must not detach
	// the fresh one
	r.GetUser("alice").ClearSession(old)
	assert.True(t, r.GetUser("alice").HasSession())
}

func TestUserLeaveRemovesUser(t *testing.T) {
	r := NewRoom("room1")
	alice := newFakeSession("s-alice")
	bob := newFakeSession("s-bob")

	r.HandleJoin("alice", "Alice", false, alice)
	r.HandleJoin("bob", "Bob", false, bob)
	alice.wait(t)

	r.HandleUserLeave(&proto.UserLeaveMsg{RoomID: "room1", UserID: "alice"}, alice)

	n := bob.wait(t)
	assert.Equal(t, "userLeave", n.method)
	assert.Nil(t, r.GetUser("alice"))
	assert.Equal(t, 1, r.UserCount())
}

func TestUnknownUserDisconnectIsIgnored(t *testing.T) {
	r := NewRoom("room1")
	alice := newFakeSession("s-alice")
	r.HandleJoin("alice", "Alice", false, alice)

	r.HandleUserDisconnect(&proto.UserDisconnectMsg{RoomID: "room1", UserID: "ghost"}, alice)
	alice.expectNone(t)
}

func TestPushCarriesSubmittedSetOnly(t *testing.T) {
	r := NewRoom("room1")
	alice := newFakeSession("s-alice")
	bob := newFakeSession("s-bob")

	r.HandleJoin("alice", "Alice", false, alice)
	r.HandleJoin("bob", "Bob", false, bob)
	alice.wait(t)

	r.HandlePush(&proto.PushMsg{
		RoomID: "room1", UserID: "alice", UserName: "Alice",
		Publishers: []proto.PushInfo{{PusherID: "cam0"}},
	}, alice)
	n := bob.wait(t)
	assert.Equal(t, proto.ClientOnPusher, n.method)

	r.HandlePush(&proto.PushMsg{
		RoomID: "room1", UserID: "alice", UserName: "Alice",
		Publishers: []proto.PushInfo{{PusherID: "mic0"}},
	}, alice)
	n = bob.wait(t)
	update := n.data.(*proto.PusherUpdateMsg)
	assert.Len(t, update.Pushers, 1)
	assert.Equal(t, "mic0", update.Pushers[0].PusherID)

	// the user still accumulates both
	assert.Len(t, r.GetUser("alice").Pushers(), 2)
}

func TestPushCreatesUnknownUser(t *testing.T) {
	r := NewRoom("room1")
	bob := newFakeSession("s-bob")
	r.HandleJoin("bob", "Bob", false, bob)

	r.HandlePush(&proto.PushMsg{
		RoomID: "room1", UserID: "alice", UserName: "Alice",
		Publishers: []proto.PushInfo{{PusherID: "cam0"}},
	}, nil)

	n := bob.wait(t)
	assert.Equal(t, proto.ClientOnPusher, n.method)
	assert.NotNil(t, r.GetUser("alice"))
}

func TestPullRemoteStreamForwardsVerbatim(t *testing.T) {
	r := NewRoom("room1")
	alice := newFakeSession("s-alice")
	bob := newFakeSession("s-bob")

	r.HandleJoin("alice", "Alice", false, alice)
	r.HandleJoin("bob", "Bob", false, bob)
	alice.wait(t)

	payload := json.RawMessage(`{"roomId":"room1","pusher_user_id":"alice","extra":{"nested":true}}`)
	r.HandlePullRemoteStream("alice", payload)

	n := alice.wait(t)
	assert.Equal(t, proto.ClientPullRemoteStream, n.method)
	assert.Equal(t, payload, n.data.(json.RawMessage))
	bob.expectNone(t)
}

func TestPullRemoteStreamUnknownPusherIsDropped(t *testing.T) {
	r := NewRoom("room1")
	bob := newFakeSession("s-bob")
	r.HandleJoin("bob", "Bob", false, bob)

	r.HandlePullRemoteStream("ghost", json.RawMessage(`{}`))
	bob.expectNone(t)
}

func TestTextMessageSkipsSender(t *testing.T) {
	r := NewRoom("room1")
	alice := newFakeSession("s-alice")
	bob := newFakeSession("s-bob")

	r.HandleJoin("alice", "Alice", false, alice)
	r.HandleJoin("bob", "Bob", false, bob)
	alice.wait(t)

	r.HandleTextMessage(&proto.TextMessageMsg{
		RoomID: "room1", UserID: "alice", UserName: "Alice", Message: "hi",
	}, alice)

	n := bob.wait(t)
	assert.Equal(t, proto.ClientTextMessage, n.method)
	assert.Equal(t, "hi", n.data.(*proto.TextMessageMsg).Message)
	alice.expectNone(t)
}

func TestASRResultReachesEveryoneAsBot(t *testing.T) {
	r := NewRoom("room1")
	alice := newFakeSession("s-alice")
	bob := newFakeSession("s-bob")

	r.HandleJoin("alice", "Alice", false, alice)
	r.HandleJoin("bob", "Bob", false, bob)
	alice.wait(t)

	r.HandleASRResult(&proto.ASRResultMsg{
		RoomID: "room1", UserID: "alice", UserName: "Alice", Result: "hello world",
	}, alice)

	for _, s := range []*fakeSession{alice, bob} {
		n := s.wait(t)
		assert.Equal(t, proto.ClientTextMessage, n.method)
		text := n.data.(*proto.TextMessageMsg)
		assert.Equal(t, proto.UID(proto.ASRBotUID), text.UserID)
		assert.Equal(t, proto.ASRBotName, text.UserName)
		assert.Equal(t, "Alice: hello world", text.Message)
	}
}

package protoo

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chuckpreslar/emission"
	"github.com/gorilla/websocket"
	log "github.com/pion/ion-log"

	"github.com/nullcore1024/RTCPilot/pkg/util"
)

const (
	// DefaultRequestTimeout bounds the wait for a response to an
	// outbound request.
	DefaultRequestTimeout = 10 * time.Second
)

type pendingResponse struct {
	data json.RawMessage
	err  *Error
}

// Peer speaks the protoo JSON protocol over one websocket connection.
// It frames and classifies inbound messages, correlates outbound
// requests with their responses, and emits "request", "notification"
// and "close" events. Room and biz state live above it.
type Peer struct {
	emission.Emitter
	id     string
	conn   *websocket.Conn
	closed util.AtomicBool

	writeLock sync.Mutex

	pendingLock sync.Mutex
	pending     map[int64]chan pendingResponse
}

// NewPeer creates a peer for an accepted connection. id must be stable
// for the connection's lifetime, it keys the room session registries.
func NewPeer(id string, conn *websocket.Conn) *Peer {
	return &Peer{
		Emitter: *emission.NewEmitter(),
		id:      id,
		conn:    conn,
		pending: make(map[int64]chan pendingResponse),
	}
}

// ID returns the connection identifier.
func (p *Peer) ID() string {
	return p.id
}

// ReadLoop consumes frames until the connection fails or is closed,
// then tears the peer down. It is the only reader of the connection.
func (p *Peer) ReadLoop() {
	defer p.Close()
	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Errorf("peer %s read error: %v", p.id, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			log.Debugf("peer %s: ignoring non-text frame", p.id)
			continue
		}
		p.handleMessage(data)
	}
}

// handleMessage classifies one raw frame. Malformed input is logged
// and dropped, it never tears down the connection.
func (p *Peer) handleMessage(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Debugf("peer %s: invalid json: %v", p.id, err)
		return
	}

	switch {
	case env.Request:
		p.handleRequest(&env)
	case env.Response:
		p.handleResponse(&env)
	case env.Notification:
		p.handleNotification(&env)
	default:
		log.Debugf("peer %s: unknown message shape", p.id)
	}
}

// handleRequest validates an inbound request and emits it. Every
// request gets exactly one response: validation failures answer 400,
// a panicking listener answers 500, and the accept/reject pair handed
// to the listener is single-shot.
func (p *Peer) handleRequest(env *envelope) {
	switch env.ID.(type) {
	case float64, string:
	default:
		if err := p.RespondError(env.ID, CodeBadRequest, "invalid id"); err != nil {
			log.Debugf("peer %s: respond error failed: %v", p.id, err)
		}
		return
	}
	method, ok := env.Method.(string)
	if !ok || method == "" {
		if err := p.RespondError(env.ID, CodeBadRequest, "invalid method"); err != nil {
			log.Debugf("peer %s: respond error failed: %v", p.id, err)
		}
		return
	}

	var once sync.Once
	accept := AcceptFunc(func(data interface{}) {
		once.Do(func() {
			if err := p.Respond(env.ID, data); err != nil {
				log.Debugf("peer %s: respond failed: %v", p.id, err)
			}
		})
	})
	reject := RejectFunc(func(code int, reason string) {
		once.Do(func() {
			if err := p.RespondError(env.ID, code, reason); err != nil {
				log.Debugf("peer %s: respond error failed: %v", p.id, err)
			}
		})
	})

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("peer %s: request %s panicked: %v", p.id, method, r)
			reject(CodeInternalError, "internal error")
		}
	}()

	// EmitSync keeps the listener in this goroutine so the recover
	// above can turn its panic into a 500; Emit would run it in a
	// fresh goroutine and let the panic kill the process.
	p.EmitSync("request", Request{ID: env.ID, Method: method, Data: env.Data}, accept, reject)
}

// handleResponse resolves the pending request matching the response
// id. Responses without a pending entry are logged and dropped.
func (p *Peer) handleResponse(env *envelope) {
	id, ok := env.ID.(float64)
	if !ok {
		log.Debugf("peer %s: response with non-numeric id %v", p.id, env.ID)
		return
	}

	p.pendingLock.Lock()
	ch, found := p.pending[int64(id)]
	if found {
		delete(p.pending, int64(id))
	}
	p.pendingLock.Unlock()

	if !found {
		log.Debugf("peer %s: response for unknown request id %v", p.id, env.ID)
		return
	}

	if env.OK {
		ch <- pendingResponse{data: env.Data}
	} else {
		ch <- pendingResponse{err: &Error{Code: env.ErrorCode, Reason: env.ErrorReason}}
	}
}

// handleNotification validates an inbound notification and emits it.
// No response is ever sent for a notification.
func (p *Peer) handleNotification(env *envelope) {
	method, ok := env.Method.(string)
	if !ok || method == "" {
		log.Debugf("peer %s: notification with invalid method %v", p.id, env.Method)
		return
	}

	defer util.Recover("peer.handleNotification")
	p.EmitSync("notification", Notification{Method: method, Data: env.Data})
}

// Request invokes a method on the remote peer and waits for the
// matching response with the default timeout.
func (p *Peer) Request(method string, data interface{}) (json.RawMessage, error) {
	return p.RequestWithTimeout(method, data, DefaultRequestTimeout)
}

// RequestWithTimeout invokes a method on the remote peer. On timeout
// only the local wait is cancelled, no signal reaches the peer; the
// pending id is freed and may be reused.
func (p *Peer) RequestWithTimeout(method string, data interface{}, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	id := util.RandomRequestID()
	ch := make(chan pendingResponse, 1)

	p.pendingLock.Lock()
	p.pending[id] = ch
	p.pendingLock.Unlock()

	discard := func() {
		p.pendingLock.Lock()
		delete(p.pending, id)
		p.pendingLock.Unlock()
	}

	if err := p.send(&RequestMessage{Request: true, ID: id, Method: method, Data: data}); err != nil {
		discard()
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.err != nil {
			return nil, resp.err
		}
		return resp.data, nil
	case <-time.After(timeout):
		discard()
		return nil, fmt.Errorf("request %s (id=%d) timed out after %v", method, id, timeout)
	}
}

// Notify sends a notification to the peer.
func (p *Peer) Notify(method string, data interface{}) error {
	return p.send(&NotificationMessage{Notification: true, Method: method, Data: data})
}

// Respond sends a success response for reqID.
func (p *Peer) Respond(reqID interface{}, data interface{}) error {
	return p.send(&ResponseMessage{Response: true, ID: reqID, OK: true, Data: data})
}

// RespondError sends an error response for reqID.
func (p *Peer) RespondError(reqID interface{}, code int, reason string) error {
	return p.send(&ResponseMessage{Response: true, ID: reqID, OK: false, ErrorCode: code, ErrorReason: reason})
}

func (p *Peer) send(msg interface{}) error {
	p.writeLock.Lock()
	defer p.writeLock.Unlock()
	if p.closed.Get() {
		return fmt.Errorf("peer %s closed", p.id)
	}
	return p.conn.WriteJSON(msg)
}

// Close tears the peer down once: the socket is closed and "close" is
// emitted so the owning server can run its cleanup.
func (p *Peer) Close() {
	if !p.closed.TrySet(true) {
		return
	}
	if err := p.conn.Close(); err != nil {
		log.Debugf("peer %s: close: %v", p.id, err)
	}
	defer util.Recover("peer.Close")
	p.EmitSync("close")
}

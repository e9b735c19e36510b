package signal

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/pion/ion-log"

	"github.com/nullcore1024/RTCPilot/pkg/msu"
	"github.com/nullcore1024/RTCPilot/pkg/protoo"
	"github.com/nullcore1024/RTCPilot/pkg/room"
)

const statCycle = time.Second * 3

// Config represents signal server configuration
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Cert string `mapstructure:"cert"`
	Key  string `mapstructure:"key"`
	Path string `mapstructure:"path"`
}

// Server accepts websocket connections and runs one protoo session
// per connection. A nil room manager leaves the server in a degraded
// mode where joins succeed without any room bookkeeping.
type Server struct {
	conf        Config
	roomManager *room.Manager
	msuManager  *msu.Manager
	upgrader    websocket.Upgrader

	sessionLock sync.RWMutex
	sessions    map[string]*Session

	closed    chan struct{}
	closeOnce sync.Once
}

// NewServer creates a signal server instance
func NewServer(conf Config, roomManager *room.Manager, msuManager *msu.Manager) *Server {
	return &Server{
		conf:        conf,
		roomManager: roomManager,
		msuManager:  msuManager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: make(map[string]*Session),
		closed:   make(chan struct{}),
	}
}

// Serve listens for websocket connections until the listener fails or
// the server is closed.
func (s *Server) Serve() error {
	go s.stat()

	mux := http.NewServeMux()
	mux.Handle(s.conf.Path, http.HandlerFunc(s.HandleWebSocket))

	addr := s.conf.Host + ":" + strconv.Itoa(s.conf.Port)
	var err error
	if s.conf.Cert == "" || s.conf.Key == "" {
		log.Infof("non-TLS WebSocketServer listening on: %s%s", addr, s.conf.Path)
		err = http.ListenAndServe(addr, mux)
	} else {
		log.Infof("TLS WebSocketServer listening on: %s%s", addr, s.conf.Path)
		err = http.ListenAndServeTLS(addr, s.conf.Cert, s.conf.Key, mux)
	}
	if err != nil {
		log.Errorf("http serve error: %v", err)
	}
	return err
}

// HandleWebSocket upgrades one connection and runs its session until
// the peer disconnects.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("upgrade websocket error: %v", err)
		return
	}

	id := ws.RemoteAddr().String()
	log.Infof("new session connected from %s", id)

	session := newSession(s, protoo.NewPeer(id, ws))
	s.register(session)

	// the handler goroutine is the connection's read loop
	session.ReadLoop()
}

// Close shuts the server down and tears every live session down.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})

	s.sessionLock.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.sessionLock.RUnlock()

	for _, session := range sessions {
		session.Close()
	}
}

// Closed exposes the shutdown channel to auxiliary loops.
func (s *Server) Closed() <-chan struct{} {
	return s.closed
}

func (s *Server) register(session *Session) {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()
	s.sessions[session.ID()] = session
}

func (s *Server) unregister(session *Session) {
	s.sessionLock.Lock()
	defer s.sessionLock.Unlock()
	if s.sessions[session.ID()] == session {
		delete(s.sessions, session.ID())
	}
}

// SessionCount live session count
func (s *Server) SessionCount() int {
	s.sessionLock.RLock()
	defer s.sessionLock.RUnlock()
	return len(s.sessions)
}

// stat logs rooms and sessions periodically. Rooms are never removed
// here: disconnected users stay resident until an explicit leave or
// room deletion.
func (s *Server) stat() {
	t := time.NewTicker(statCycle)
	defer t.Stop()
	for {
		select {
		case <-t.C:
		case <-s.closed:
			log.Infof("stop stat")
			return
		}

		var info string
		if s.roomManager != nil {
			for _, r := range s.roomManager.Rooms() {
				info += fmt.Sprintf("room: %s\nusers: %d sessions: %d\n", r.ID(), r.UserCount(), r.SessionCount())
			}
		}
		if len(info) > 0 {
			log.Infof("\n----------------signal-----------------\n%s", info)
		}
	}
}

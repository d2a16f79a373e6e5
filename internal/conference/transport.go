// Package conference implements the session/signaling server described in
// spec.md §4: the Signaling Transport (C3), Client Registry (C4), Main-PC
// Manager (C5), P2P Fan-out Manager (C6), and Signaling Relay (C7). Its
// goroutine-per-session shape — one reader, one writer, a buffered send
// channel — is lifted directly from the teacher's sfuPeer/readPumpSFU/
// writePumpSFU in webrtc/sfu.go and websocket/websocket.go's ReadPump/
// WritePump, generalized from a video SFU room to a two-PC-per-client PTT
// conference with a single global floor.
package conference

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// heartbeatInterval and pongWait implement spec.md §4.3's liveness rule:
// "the server sends a ping every 30s; a session whose previous ping
// received no pong before the next cycle is force-closed."
const (
	heartbeatInterval = 30 * time.Second
	pongWait          = heartbeatInterval + 5*time.Second
	writeWait         = 5 * time.Second
)

// upgrader mirrors the teacher's websocket.Upgrader in websocket/
// websocket.go: permissive origin checks outside production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return os.Getenv("ENVIRONMENT") != "production"
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// transport is one session's duplex JSON-envelope channel (C3). A single
// writer goroutine owns the websocket.Conn for writes; ReadMessage is
// called only from readPump. Both pumps are started by ServeWS.
type transport struct {
	conn   *websocket.Conn
	send   chan []byte   // best-effort; a full channel means the frame is dropped (spec.md §4.3)
	closed chan struct{} // closed once writePump is done draining send

	heartbeatAlive bool
}

func newTransport(conn *websocket.Conn) *transport {
	return &transport{conn: conn, send: make(chan []byte, 256), closed: make(chan struct{}), heartbeatAlive: true}
}

// enqueue is the back-pressure policy from spec.md §4.3: outbound writes
// are best-effort, frames are dropped rather than blocking the caller. The
// <-t.closed case guards against a send racing a concurrent teardown's
// close(t.send), the same discipline the teacher's sendJSON uses around
// p.send/p.closed in sfu.go.
func (t *transport) enqueue(raw []byte) {
	select {
	case t.send <- raw:
	case <-t.closed:
	default:
	}
}

// writePump drains send and owns every write to the connection, including
// ping control frames, the way writePumpSFU does in the teacher.
func (t *transport) writePump(onClose func()) {
	ticker := time.NewTicker(heartbeatInterval)
	defer func() {
		ticker.Stop()
		_ = t.conn.Close()
		close(t.closed)
		onClose()
	}()

	for {
		select {
		case msg, ok := <-t.send:
			if !ok {
				_ = t.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			t.heartbeatAlive = false
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump blocks on ReadMessage, handing each frame to onMessage; returns
// when the connection closes for any reason. A pong flips heartbeatAlive
// back to true (spec.md §4.3).
func (t *transport) readPump(onMessage func([]byte), onClose func()) {
	defer onClose()

	t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		t.heartbeatAlive = true
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		onMessage(raw)
	}
}

func (t *transport) close() {
	close(t.send)
}

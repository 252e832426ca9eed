package bus

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 256 * 1024
	sendBufferSize = 256
)

// socketSender adapts a *websocket.Conn to registry.Sender. Outbound
// frames are queued on a bounded channel and written by a single
// goroutine (writePump); a full queue means the peer is too slow and
// the connection is torn down rather than buffered without bound.
type socketSender struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	bin  bool // binary frames vs text frames, per configured wire
}

func newSocketSender(conn *websocket.Conn, binary bool) *socketSender {
	return &socketSender{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
		bin:  binary,
	}
}

func (s *socketSender) Send(data []byte) error {
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return errSocketClosed
	default:
		// Backpressure: the peer is too slow to keep up. Drop the
		// connection instead of growing the queue without bound.
		s.forceClose()
		return errSocketClosed
	}
}

func (s *socketSender) forceClose() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *socketSender) Close() error {
	s.forceClose()
	return s.conn.Close()
}

// writePump owns all writes to conn: queued frames plus periodic pings.
// It must run in its own goroutine and returns when done is closed or a
// write fails.
func (s *socketSender) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	frameType := websocket.TextMessage
	if s.bin {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(frameType, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

package events

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	handshakeTimeout = 10 * time.Second
	pingInterval     = 30 * time.Second
	pongWait         = 90 * time.Second
	writeWait        = 10 * time.Second
)

// WSStream is a Stream fed by the execution layer's updates websocket.
type WSStream struct {
	*Hub

	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to an updates websocket and starts reading frames.
func Dial(ctx context.Context, url string) (*WSStream, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	s := &WSStream{Hub: NewHub(), conn: conn}
	go s.readLoop(url)
	go s.heartbeat()
	return s, nil
}

// Close closes the connection and ends the stream.
func (s *WSStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		s.writeMu.Unlock()
		err = s.conn.Close()
		_ = s.Hub.Close()
	})
	return err
}

func (s *WSStream) readLoop(url string) {
	defer func() { _ = s.Close() }()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("url", url).Msg("Event stream closed")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.TextMessage {
			continue
		}
		evs, err := DecodeFrame(data)
		if err != nil {
			log.Debug().Err(err).Str("url", url).Msg("Skipping undecodable event frame")
			continue
		}
		for _, ev := range evs {
			s.Publish(ev)
		}
	}
}

func (s *WSStream) heartbeat() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				_ = s.Close()
				return
			}
		}
	}
}

// StreamFactory opens account- and session-scoped event streams.
type StreamFactory interface {
	OpenAccount(ctx context.Context, publicKey string) (Stream, error)
	OpenSession(ctx context.Context, sessionID uint64) (Stream, error)
}

// WSFactory dials streams at <base>/updates/<filter>.
type WSFactory struct {
	base string
}

// NewWSFactory creates a factory for the given ws:// or wss:// base URL.
func NewWSFactory(base string) *WSFactory {
	return &WSFactory{base: strings.TrimRight(base, "/")}
}

// OpenAccount subscribes to every event of one account.
func (f *WSFactory) OpenAccount(ctx context.Context, publicKey string) (Stream, error) {
	return Dial(ctx, f.base+"/updates/account/"+publicKey)
}

// OpenSession subscribes to the events of one game session.
func (f *WSFactory) OpenSession(ctx context.Context, sessionID uint64) (Stream, error) {
	return Dial(ctx, f.base+"/updates/session/"+strconv.FormatUint(sessionID, 10))
}

package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/spec-kit/presence-service/internal/presence"
)

// Stream is an open presence subscription. Updates is closed when the
// transport drops.
type Stream interface {
	Updates() <-chan []string
	Close() error
}

// Dialer opens a presence subscription authenticated by a token.
type Dialer interface {
	Dial(ctx context.Context, token string) (Stream, error)
}

// WebsocketDialer connects to the backend's /ws endpoint.
type WebsocketDialer struct {
	baseURL string
}

// NewWebsocketDialer accepts the backend base address (http or ws scheme).
func NewWebsocketDialer(baseURL string) *WebsocketDialer {
	return &WebsocketDialer{baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (d *WebsocketDialer) Dial(ctx context.Context, token string) (Stream, error) {
	wsURL := strings.Replace(d.baseURL, "http", "ws", 1) + "/ws?token=" + url.QueryEscape(token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	s := &wsStream{conn: conn, updates: make(chan []string, 8)}
	go s.readLoop()
	return s, nil
}

type wsStream struct {
	conn    *websocket.Conn
	updates chan []string
}

func (s *wsStream) Updates() <-chan []string {
	return s.updates
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}

func (s *wsStream) readLoop() {
	defer close(s.updates)
	for {
		var frame presence.OnlineUsersFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Event != presence.EventOnlineUsers {
			continue
		}
		s.updates <- frame.Data
	}
}

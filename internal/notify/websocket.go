package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// WebsocketSubscriber connects to {BaseURL}/ws/{projectID}.
type WebsocketSubscriber struct {
	BaseURL string
	// Token, when set, supplies a bearer credential for the handshake.
	Token  func() string
	Dialer *websocket.Dialer
}

// PushURLFromAPI derives the websocket root from the REST root by swapping
// the scheme.
func PushURLFromAPI(apiURL string) string {
	switch {
	case strings.HasPrefix(apiURL, "https://"):
		return "wss://" + strings.TrimPrefix(apiURL, "https://")
	case strings.HasPrefix(apiURL, "http://"):
		return "ws://" + strings.TrimPrefix(apiURL, "http://")
	}
	return apiURL
}

func (s *WebsocketSubscriber) endpoint(projectID int) (string, error) {
	u, err := url.Parse(strings.TrimRight(s.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse push url: %w", err)
	}
	u.Path = fmt.Sprintf("%s/ws/%d", u.Path, projectID)
	return u.String(), nil
}

func (s *WebsocketSubscriber) Subscribe(ctx context.Context, projectID int) (Subscription, error) {
	endpoint, err := s.endpoint(projectID)
	if err != nil {
		return nil, err
	}
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	if s.Token != nil {
		if tok := s.Token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("open push channel for project %d: %w", projectID, err)
	}
	return newWSSubscription(conn), nil
}

type wsSubscription struct {
	conn   *websocket.Conn
	events chan Event
	errc   chan error
	closed chan struct{}
	once   sync.Once
}

func newWSSubscription(conn *websocket.Conn) *wsSubscription {
	w := &wsSubscription{
		conn:   conn,
		events: make(chan Event),
		errc:   make(chan error, 1),
		closed: make(chan struct{}),
	}
	go w.readLoop()
	return w
}

func (w *wsSubscription) readLoop() {
	for {
		_, payload, err := w.conn.ReadMessage()
		if err != nil {
			w.errc <- err
			return
		}
		ev, err := decodeEvent(payload)
		if err != nil {
			// Malformed frames are skipped.
			continue
		}
		select {
		case w.events <- ev:
		case <-w.closed:
			return
		}
	}
}

func (w *wsSubscription) Recv(ctx context.Context) (Event, error) {
	select {
	case ev := <-w.events:
		return ev, nil
	case err := <-w.errc:
		select {
		case <-w.closed:
			return Event{}, ErrClosed
		default:
		}
		return Event{}, fmt.Errorf("push channel dropped: %w", err)
	case <-w.closed:
		return Event{}, ErrClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (w *wsSubscription) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closed)
		_ = w.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = w.conn.Close()
		if errors.Is(err, websocket.ErrCloseSent) {
			err = nil
		}
	})
	return err
}

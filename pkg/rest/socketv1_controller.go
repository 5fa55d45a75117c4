package rest

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quickmail/quickmail/pkg/notify"
	"github.com/quickmail/quickmail/pkg/rest/model"
	"github.com/quickmail/quickmail/pkg/server/web"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// options for gorilla connection upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// notifyListener relays notification events from a session queue to one
// WebSocket connection.
type notifyListener struct {
	queue     *notify.Queue
	c         chan model.JSONNotificationV1 // Queue of events from Receive()
	done      chan struct{}
	closeOnce sync.Once
}

// newNotifyListener creates a listener and registers it with the queue.
func newNotifyListener(queue *notify.Queue) *notifyListener {
	nl := &notifyListener{
		queue: queue,
		c:     make(chan model.JSONNotificationV1, 100),
		done:  make(chan struct{}),
	}
	queue.AddListener(nl)
	return nl
}

// Receive handles a pushed notification.
func (nl *notifyListener) Receive(n notify.Notification) error {
	select {
	case nl.c <- model.JSONNotificationV1{
		ID:      n.ID,
		Kind:    string(n.Kind),
		Message: n.Message,
		Date:    n.Date,
	}:
		return nil
	case <-nl.done:
		return errors.New("listener closed")
	}
}

// Expire handles a notification leaving the queue.
func (nl *notifyListener) Expire(id uint64) error {
	select {
	case nl.c <- model.JSONNotificationV1{ID: id, Expired: true}:
		return nil
	case <-nl.done:
		return errors.New("listener closed")
	}
}

// WSReader makes sure the websocket client is still connected, discards any
// messages from client.
func (nl *notifyListener) WSReader(conn *websocket.Conn) {
	slog := log.With().Str("module", "rest").Str("proto", "WebSocket").
		Str("remote", conn.RemoteAddr().String()).Logger()
	defer nl.Close()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		slog.Debug().Msg("Got pong")
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				// Unexpected close code
				slog.Warn().Err(err).Msg("Socket error")
			} else {
				slog.Debug().Msg("Closing socket")
			}
			break
		}
	}
}

// WSWriter relays notification events to the client until the listener is
// closed, pinging to keep the connection alive.
func (nl *notifyListener) WSWriter(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		nl.Close()
	}()

	for {
		select {
		case <-nl.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case event := <-nl.c:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if conn.WriteJSON(event) != nil {
				// Write failed
				return
			}
		case <-ticker.C:
			// Send ping
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if conn.WriteMessage(websocket.PingMessage, []byte{}) != nil {
				// Write error
				return
			}
			log.Debug().Str("module", "rest").Str("proto", "WebSocket").
				Str("remote", conn.RemoteAddr().String()).Msg("Sent ping")
		}
	}
}

// Close removes the listener registration.
func (nl *notifyListener) Close() {
	nl.closeOnce.Do(func() {
		nl.queue.RemoveListener(nl)
		close(nl.done)
	})
}

// SessionSocketV1 is a web handler which upgrades the connection to a
// websocket and streams notification events for one session; a frame per
// push or expiry.
func SessionSocketV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	s := ctx.Manager.Session(ctx.Vars["id"])
	if s == nil {
		http.NotFound(w, req)
		return nil
	}
	// Upgrade to Websocket.
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return err
	}
	web.ExpWebSocketConnectsCurrent.Add(1)
	defer func() {
		_ = conn.Close()
		web.ExpWebSocketConnectsCurrent.Add(-1)
	}()
	log.Debug().Str("module", "rest").Str("proto", "WebSocket").
		Str("remote", conn.RemoteAddr().String()).Msg("Upgraded to WebSocket")
	// Create, register listener; then interact with conn.
	nl := newNotifyListener(s.Notifications())
	go nl.WSWriter(conn)
	nl.WSReader(conn)
	return nil
}

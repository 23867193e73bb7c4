package httpapi

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liquichain/contract_layer/internal/events"
)

const (
	streamBuffer     = 64
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// streamEvents pushes journal events to a websocket client as JSON frames.
// The optional handler and type query parameters narrow the feed. A client
// that cannot keep up loses events rather than stalling dispatch.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	wantHandler, wantType := q.Get("handler"), events.EventType(q.Get("type"))

	feed := make(chan events.Event, streamBuffer)
	var dropped atomic.Int64
	unsubscribe := s.events.SubscribeFiltered(
		func(e events.Event) bool {
			return (wantHandler == "" || e.Handler == wantHandler) &&
				(wantType == "" || e.Type == wantType)
		},
		func(e events.Event) {
			select {
			case feed <- e:
			default:
				dropped.Add(1)
			}
		},
	)
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("event stream upgrade failed")
		return
	}
	defer conn.Close()

	log := s.log.WithField("remote", clientKey(r))
	log.Debug("event stream opened")

	// Reads only serve to notice the client going away and to process pongs.
	closed := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			log.WithField("dropped", dropped.Load()).Debug("event stream closed")
			return
		case <-r.Context().Done():
			return
		case e := <-feed:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				log.WithError(err).Debug("event stream write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/blinklabs-io/agora/event"
	"github.com/gorilla/websocket"
)

const (
	eventsWriteWait    = 10 * time.Second
	eventsPongWait     = 60 * time.Second
	eventsPingInterval = (eventsPongWait * 9) / 10
	eventsBufferSize   = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The stream is read-only public data
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleEvents handles GET /api/v0/events. It upgrades the connection to a
// websocket and streams bus events as JSON. The optional types query
// parameter is a comma separated list of event types to forward.
func (s *Server) handleEvents(
	w http.ResponseWriter,
	r *http.Request,
) {
	var filter map[event.EventType]struct{}
	if typesParam := r.URL.Query().Get("types"); typesParam != "" {
		filter = make(map[event.EventType]struct{})
		for _, evtType := range strings.Split(typesParam, ",") {
			if evtType = strings.TrimSpace(evtType); evtType != "" {
				filter[event.EventType(evtType)] = struct{}{}
			}
		}
	}
	// Subscribe before the handshake completes so no event published after
	// the client connects is missed
	bus := s.node.EventBus()
	subId, evtCh := bus.SubscribeWithBuffer(event.AllEvents, eventsBufferSize)
	defer bus.Unsubscribe(event.AllEvents, subId)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		s.logger.Debug(
			"failed to upgrade event stream",
			"error", err,
		)
		return
	}
	defer conn.Close()
	s.logger.Debug(
		"event stream client connected",
		"remote_addr", r.RemoteAddr,
		"request_id", w.Header().Get(RequestIdHeader),
	)

	// The reader only services control frames and notices disconnects
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(eventsPingInterval)
	defer pingTicker.Stop()
	for {
		select {
		case <-doneCh:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-evtCh:
			if !ok {
				// Bus stopped
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(eventsWriteWait),
				)
				return
			}
			if filter != nil {
				if _, ok := filter[evt.Type]; !ok {
					continue
				}
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				s.logger.Debug(
					"event stream write failed",
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteControl(
				websocket.PingMessage,
				nil,
				time.Now().Add(eventsWriteWait),
			); err != nil {
				return
			}
		}
	}
}

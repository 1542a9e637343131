package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/archipelago/internal/engine"
)

const (
	maxStreamConns  = 32
	streamBuffer    = 256
	streamHeartbeat = 15 * time.Second
	writeWait       = 5 * time.Second
)

// streamFilter selects which events a stream client receives. Empty
// fields match everything.
type streamFilter struct {
	kinds  map[engine.EventKind]bool
	cityID string
}

func parseStreamFilter(r *http.Request) streamFilter {
	f := streamFilter{cityID: r.URL.Query().Get("city")}
	if raw := r.URL.Query().Get("kinds"); raw != "" {
		f.kinds = make(map[engine.EventKind]bool)
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				f.kinds[engine.EventKind(k)] = true
			}
		}
	}
	return f
}

func (f streamFilter) match(e engine.Event) bool {
	if f.kinds != nil && !f.kinds[e.Kind] {
		return false
	}
	if f.cityID != "" && e.CityID != "" && e.CityID != f.cityID {
		return false
	}
	return true
}

// handleStream relays the event feed over a websocket. Query parameters
// kinds (comma separated) and city narrow what is sent. Slow clients
// miss events rather than stall the game.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.streamConns, 1)
	defer atomic.AddInt32(&s.streamConns, -1)
	if current > maxStreamConns {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	filter := parseStreamFilter(r)
	out := make(chan engine.Event, streamBuffer)
	var dropped atomic.Int64

	// Subscribe before the handshake completes so the client sees every
	// event published after its dial returns.
	unsubscribe := s.Game.Bus().Subscribe("", func(e engine.Event) {
		if !filter.match(e) {
			return
		}
		select {
		case out <- e:
		default:
			dropped.Add(1)
		}
	})
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	slog.Info("stream client connected", "remote", clientIP(r), "clients", current)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reader: the client sends nothing useful, but reading surfaces closes.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case e := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				slog.Info("stream client write failed", "error", err)
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
			slog.Info("stream client disconnected", "remote", clientIP(r), "dropped", dropped.Load())
			return
		}
	}
}

package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"rocket/core/events"
)

const (
	wsWriteTimeout = 10 * time.Second
)

// eventFilter keeps envelopes whose type starts with one of the prefixes
// given in ?type=, comma separated.
type eventFilter []string

func filterFrom(r *http.Request) eventFilter {
	var out eventFilter
	for _, part := range strings.Split(r.URL.Query().Get("type"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (f eventFilter) match(env events.Envelope) bool {
	if len(f) == 0 {
		return true
	}
	for _, prefix := range f {
		if strings.HasPrefix(env.Type, prefix) {
			return true
		}
	}
	return false
}

// handleEventBacklog returns the retained events after ?cursor=.
func (s *Server) handleEventBacklog(w http.ResponseWriter, r *http.Request) {
	if s.svc.Events == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	filter := filterFrom(r)
	_, cancel, backlog := s.svc.Events.Subscribe(r.Context(), r.URL.Query().Get("cursor"))
	cancel()
	out := make([]events.Envelope, 0, len(backlog))
	for _, env := range backlog {
		if filter.match(env) {
			out = append(out, env)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.svc.Events == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	filter := filterFrom(r)
	origins := s.cfg.WSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			s.logger.Debug("event stream ended", "error", err)
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor string, filter eventFilter) error {
	updates, cancel, backlog := s.svc.Events.Subscribe(ctx, cursor)
	defer cancel()

	for _, env := range backlog {
		if !filter.match(env) {
			continue
		}
		if err := writeEnvelope(ctx, conn, env); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-updates:
			if !ok {
				return nil
			}
			if !filter.match(env) {
				continue
			}
			if err := writeEnvelope(ctx, conn, env); err != nil {
				return err
			}
		}
	}
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, env events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

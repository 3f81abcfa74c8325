package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"growspace/core/events"
)

const wsWriteTimeout = 10 * time.Second

// handleEventsWS streams committed events. Clients resume from a previous
// notification by passing its cursor; the backlog is replayed first. A client
// that falls a full buffer behind is disconnected and reconnects with its
// cursor.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	kinds := eventFilter(r.URL.Query()["type"])
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	// The client never writes; CloseRead handles control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor, kinds); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			s.logger.Warn("event stream failed", slog.Any("error", err))
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor string, kinds map[string]struct{}) error {
	updates, cancel, backlog := s.node.Events().Subscribe(ctx, cursor)
	defer cancel()

	for _, note := range backlog {
		if err := writeNotification(ctx, conn, note, kinds); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case note, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeNotification(ctx, conn, note, kinds); err != nil {
				return err
			}
		}
	}
}

func eventFilter(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		for _, kind := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(kind); trimmed != "" {
				out[trimmed] = struct{}{}
			}
		}
	}
	return out
}

func writeNotification(ctx context.Context, conn *websocket.Conn, note events.Notification, kinds map[string]struct{}) error {
	if note.Event == nil {
		return nil
	}
	if len(kinds) > 0 {
		if _, ok := kinds[note.Event.Type]; !ok {
			return nil
		}
	}
	data, err := json.Marshal(EventJSON{
		Sequence:   note.Sequence,
		Cursor:     note.Cursor,
		Type:       note.Event.Type,
		Attributes: note.Event.Attributes,
	})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
